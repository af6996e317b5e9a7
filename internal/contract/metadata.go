package contract

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MetadataSpec is the metadata version written by default deployments.
const MetadataSpec = "nft-1.0.0"

const specPrefix = "nft-"

// Metadata describes the collection (the nft_metadata view).
type Metadata struct {
	Spec      string `json:"spec"`
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	Icon      string `json:"icon,omitempty"`
	BaseURI   string `json:"base_uri,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// Validate rejects metadata a wallet could not display.
func (m Metadata) Validate() error {
	if !strings.HasPrefix(m.Spec, specPrefix) {
		return fmt.Errorf("%w: spec %q must start with %q", ErrInvalidMetadata, m.Spec, specPrefix)
	}
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidMetadata)
	}
	if strings.TrimSpace(m.Symbol) == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidMetadata)
	}
	return nil
}

// TokenMetadata describes one minted token. Media and Reference are
// relative to the collection's base_uri.
type TokenMetadata struct {
	Title     string `json:"title"`
	Media     string `json:"media,omitempty"`
	Reference string `json:"reference,omitempty"`
	// IssuedAt is the mint time in Unix milliseconds.
	IssuedAt string `json:"issued_at"`
}

// NewTokenMetadata returns the metadata of token id minted at issued.
func NewTokenMetadata(id uint64, issued time.Time) *TokenMetadata {
	s := strconv.FormatUint(id, 10)
	return &TokenMetadata{
		Title:     s,
		Media:     s + ".png",
		Reference: s + ".json",
		IssuedAt:  strconv.FormatInt(issued.UnixMilli(), 10),
	}
}
