package customer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name     string
		custName string
		email    string
		taxID    string
		wantErr  string
	}{
		{name: "valid", custName: "Ana Souza", email: "ana@example.com", taxID: "12345678901"},
		{name: "email normalized", custName: "Ana", email: "  ANA@Example.COM ", taxID: "12345678901"},
		{name: "empty name", custName: "  ", email: "ana@example.com", taxID: "12345678901", wantErr: "name must not be empty"},
		{name: "email missing at", custName: "Ana", email: "ana.example.com", taxID: "12345678901", wantErr: "invalid email"},
		{name: "email missing dot", custName: "Ana", email: "ana@examplecom", taxID: "12345678901", wantErr: "invalid email"},
		{name: "tax id too short", custName: "Ana", email: "ana@example.com", taxID: "1234567890", wantErr: "exactly 11 digits"},
		{name: "tax id with letters", custName: "Ana", email: "ana@example.com", taxID: "1234567890a", wantErr: "only digits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.custName, tt.email, tt.taxID)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, c.ID)
			assert.Equal(t, "ana@example.com", c.Email)
		})
	}
}

func TestMatches(t *testing.T) {
	base, err := New("Ana", "ana@example.com", "12345678901")
	require.NoError(t, err)

	sameTaxID, err := New("A. Souza", "other@example.com", "12345678901")
	require.NoError(t, err)
	sameEmail, err := New("Ana S.", "ana@example.com", "98765432109")
	require.NoError(t, err)
	different, err := New("Bruno", "bruno@example.com", "11122233344")
	require.NoError(t, err)

	assert.True(t, base.Matches(sameTaxID), "matching tax id alone suffices")
	assert.True(t, base.Matches(sameEmail), "matching email alone suffices")
	assert.False(t, base.Matches(different))
	assert.False(t, base.Matches(nil))
}

func TestAddresses(t *testing.T) {
	c, err := New("Ana", "ana@example.com", "12345678901")
	require.NoError(t, err)

	home, err := NewAddress("60000000", "Fortaleza", "ce", "Rua A", "100", "apt 2")
	require.NoError(t, err)
	work, err := NewAddress("01000000", "Sao Paulo", "SP", "Av B", "2000", "")
	require.NoError(t, err)

	assert.Equal(t, "CE", home.Region, "region is normalized upper-case")

	c.AddAddress(home)
	c.AddAddress(work)
	require.Len(t, c.Addresses, 2)
	assert.Equal(t, home.ID, c.Addresses[0].ID, "insertion order is preserved")

	got, err := c.AddressByID(work.ID)
	require.NoError(t, err)
	assert.Equal(t, "SP", got.Region)

	require.NoError(t, c.RemoveAddress(home.ID))
	require.Len(t, c.Addresses, 1)
	require.Error(t, c.RemoveAddress(home.ID))

	require.Error(t, c.RemoveAddressAt(5))
	require.NoError(t, c.RemoveAddressAt(0))
	assert.Empty(t, c.Addresses)
}

func TestNewAddress_Validation(t *testing.T) {
	tests := []struct {
		name    string
		postal  string
		region  string
		wantErr string
	}{
		{name: "valid", postal: "60000000", region: "CE"},
		{name: "short postal code", postal: "6000000", region: "CE", wantErr: "exactly 8 digits"},
		{name: "postal code with letters", postal: "6000000a", region: "CE", wantErr: "only digits"},
		{name: "bad region", postal: "60000000", region: "CEA", wantErr: "2-letter code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAddress(tt.postal, "Fortaleza", tt.region, "Rua A", "1", "")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}
