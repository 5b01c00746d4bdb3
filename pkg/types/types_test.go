package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMintCount_Validate(t *testing.T) {
	tests := []struct {
		name    string
		count   MintCount
		wantErr bool
	}{
		{
			name:  "below maximum",
			count: MintCount{Current: 3, Maximum: 50, Known: true},
		},
		{
			name:  "at maximum",
			count: MintCount{Current: 50, Maximum: 50, Known: true},
		},
		{
			name:  "zero pair",
			count: MintCount{},
		},
		{
			name:    "current exceeds maximum",
			count:   MintCount{Current: 51, Maximum: 50, Known: true},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.count.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestMintCount_String(t *testing.T) {
	assert.Equal(t, "? / ?", MintCount{}.String())
	assert.Equal(t, "7 / 50", MintCount{Current: 7, Maximum: 50, Known: true}.String())
}

func TestNotice_Text(t *testing.T) {
	n := Notice{Kind: NoticeMinted, Message: "minted", Link: "https://example.com/1"}
	assert.Equal(t, "minted https://example.com/1", n.Text())

	n.Link = ""
	assert.Equal(t, "minted", n.Text())
}
