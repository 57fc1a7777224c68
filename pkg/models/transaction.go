package models

import "fmt"

// Category identifies which on-chain record table a transaction row came from.
// The category is not carried on graph edges; it only routes timestamps into
// the matching gap-statistics bucket.
type Category int

const (
	CategoryNative Category = iota // Plain native-coin transfers ("transactions")
	CategoryDEXSwap                // DEX swaps ("dex_swaps")
	CategoryNFT                    // NFT transfers ("nft_transfers")
	CategoryToken                  // ERC-20 token transfers ("token_transfers")
)

// Categories lists every category in the fixed processing order. Feature
// columns and node-index assignment both depend on this order.
var Categories = []Category{CategoryNative, CategoryDEXSwap, CategoryNFT, CategoryToken}

func (c Category) String() string {
	switch c {
	case CategoryNative:
		return "transactions"
	case CategoryDEXSwap:
		return "dex_swaps"
	case CategoryNFT:
		return "nft_transfers"
	case CategoryToken:
		return "token_transfers"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// ParseCategory maps a table name back to its Category.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown transaction category: %q", s)
}

// Direction selects whether an address is matched on the sending or the
// receiving column of a category table.
type Direction string

const (
	DirectionFrom Direction = "FROM"
	DirectionTo   Direction = "TO"
)

// Directions is the order in which related rows are fetched per category.
var Directions = []Direction{DirectionFrom, DirectionTo}

// TxRow is a single transfer record as read from the transaction store.
type TxRow struct {
	ID           string   `json:"id,omitempty"` // Store-unique key (tx hash + log index); empty disables dedup
	Category     Category `json:"category"`
	From         string   `json:"from"`
	To           string   `json:"to"`
	Value        float64  `json:"value"`     // VALUE_PRECISE or AMOUNT_PRECISE
	Timestamp    float64  `json:"timestamp"` // Unix seconds, 0 when unparseable
	RawTimestamp string   `json:"rawTimestamp,omitempty"`
}

// LabeledAddress is one row of a supervised training or test set.
type LabeledAddress struct {
	Address string  `json:"address"`
	Label   float64 `json:"label"` // 0 = benign, 1 = fraudulent
}

// PredictionRow is one line of an exported scoring report.
type PredictionRow struct {
	Address    string  `json:"address"`
	Score      float64 `json:"score"`
	Prediction int     `json:"prediction"` // 1 when Score >= threshold
}

// RiskAssessment is the scorer's verdict for a single address.
type RiskAssessment struct {
	Address          string  `json:"address"`
	RiskScore        float64 `json:"risk_score"`    // [0,1]
	RiskCategory     string  `json:"risk_category"` // "HIGH"/"MEDIUM"/"LOW"
	Message          string  `json:"message,omitempty"`
	TransactionCount int     `json:"transaction_count"`
	LastUpdated      string  `json:"last_updated,omitempty"`
}
