package models

import (
	"encoding/json"
)

// Placeholder sentinels emitted by the intent resolver for values that are only
// known at preparation time.
const (
	PlaceholderUserAddress = "[USER_WALLET_ADDRESS]"
	PlaceholderDeadline    = "[CURRENT_TIMESTAMP_PLUS_600S]"
)

// DeadlineWindowSeconds is added to the current unix time when resolving the
// deadline placeholder.
const DeadlineWindowSeconds = 600

// Message is a single chat message sent to the intent resolver.
type Message struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StructuredIntent is the JSON object returned by the intent resolver.
// Exactly one of the action path or Error is populated.
type StructuredIntent struct {
	Action           string        `json:"action,omitempty"`
	ContractKey      string        `json:"contract_key,omitempty"`
	FunctionName     string        `json:"function_name,omitempty"`
	Args             []interface{} `json:"args,omitempty"`
	Value            string        `json:"value,omitempty"`
	RequiresApproval bool          `json:"requires_approval,omitempty"`
	ApprovalToken    string        `json:"approval_token,omitempty"`
	ApprovalAmount   string        `json:"approval_amount,omitempty"`
	Error            string        `json:"error,omitempty"`
}

// IsError reports whether the resolver rejected the utterance.
func (si *StructuredIntent) IsError() bool {
	return si.Error != ""
}

// TransactionDescriptor is one fully resolved, signable contract call.
// It is immutable once built and never contains an unresolved placeholder.
//
// Two wire shapes are supported by the signing layer: the ABI form
// (ContractAddress/FunctionName/Args/ABI) and the raw pre-encoded form
// (To/Data). Value is decimal ETH in both shapes.
type TransactionDescriptor struct {
	ContractKey     string          `json:"contract_key,omitempty"`
	ContractAddress string          `json:"contract_address,omitempty"`
	FunctionName    string          `json:"function_name,omitempty"`
	Args            []interface{}   `json:"args,omitempty"`
	Value           string          `json:"value"`
	ABI             json.RawMessage `json:"abi,omitempty"`

	To   string `json:"to,omitempty"`
	Data string `json:"data,omitempty"`
}

// IsRaw reports whether the descriptor carries a pre-encoded call instead of
// an ABI fragment.
func (d *TransactionDescriptor) IsRaw() bool {
	return d.To != "" && d.Data != ""
}

// PreparedTransaction is the approval detection output contract handed to the
// execution layer. RequiresApproval without an ApprovalTransaction means the
// approval parameters could not be derived and execution must fail fast.
type PreparedTransaction struct {
	RequiresApproval    bool                   `json:"requiresApproval"`
	ApprovalTransaction *TransactionDescriptor `json:"approvalTransaction"`
	Transaction         TransactionDescriptor  `json:"transaction"`
}
