// Package builder turns structured intents into fully resolved, signable
// transaction descriptors: placeholders are substituted, the target contract
// is looked up in the registry and an ERC-20 approval step is attached when
// the call spends tokens on the caller's behalf.
package builder

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/harshkas4na/Protocol-Pal/pkg/logger"
	"github.com/harshkas4na/Protocol-Pal/pkg/metrics"
	"github.com/harshkas4na/Protocol-Pal/pkg/models"
	"github.com/harshkas4na/Protocol-Pal/pkg/registry"
)

var (
	// ErrMalformedIntent indicates the intent is missing required fields or
	// names a contract the registry does not know.
	ErrMalformedIntent = errors.New("malformed intent")
	// ErrUnknownFunction indicates the named function does not exist on the
	// target contract's interface.
	ErrUnknownFunction = errors.New("unknown function")
)

// Functions that transfer tokens out of the caller's wallet and therefore
// need a router allowance even when the resolver forgets to say so.
var tokenSpendingFunctions = map[string]bool{
	"swapExactTokensForETH":    true,
	"swapExactTokensForTokens": true,
}

// Builder prepares transaction descriptors against a fixed contract registry.
type Builder struct {
	registry *registry.Registry
	logger   logger.Logger

	// now is swappable so deadline resolution is deterministic in tests.
	now func() time.Time
}

// New creates a descriptor builder backed by the given registry.
func New(reg *registry.Registry, lg logger.Logger) *Builder {
	return &Builder{
		registry: reg,
		logger:   lg,
		now:      time.Now,
	}
}

// Build resolves the intent into a prepared transaction for the given caller.
// The returned descriptors carry no placeholders. When an approval is needed
// but its parameters cannot be derived, the result has RequiresApproval set
// with a nil ApprovalTransaction so the execution layer can refuse to proceed.
func (b *Builder) Build(intent *models.StructuredIntent, callerAddress string) (*models.PreparedTransaction, error) {
	if err := validateIntent(intent); err != nil {
		metrics.PreparationErrors.WithLabelValues("malformed_intent").Inc()
		return nil, err
	}

	spec, ok := b.registry.Contract(intent.ContractKey)
	if !ok {
		metrics.PreparationErrors.WithLabelValues("malformed_intent").Inc()
		return nil, fmt.Errorf("%w: unknown contract key %q", ErrMalformedIntent, intent.ContractKey)
	}

	if !spec.HasFunction(intent.FunctionName) {
		metrics.PreparationErrors.WithLabelValues("unknown_function").Inc()
		return nil, fmt.Errorf("%w: %s has no function %q", ErrUnknownFunction, intent.ContractKey, intent.FunctionName)
	}

	fragment, err := spec.Fragment(intent.FunctionName)
	if err != nil {
		metrics.PreparationErrors.WithLabelValues("unknown_function").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnknownFunction, err)
	}

	deadline := b.now().Unix() + models.DeadlineWindowSeconds
	args := resolveArgs(intent.Args, callerAddress, deadline)

	value := intent.Value
	if value == "" {
		value = "0.0"
	}

	prepared := &models.PreparedTransaction{
		Transaction: models.TransactionDescriptor{
			ContractKey:     intent.ContractKey,
			ContractAddress: spec.Address.Hex(),
			FunctionName:    intent.FunctionName,
			Args:            args,
			Value:           value,
			ABI:             fragment,
		},
	}

	b.attachApproval(prepared, intent, spec, args)

	metrics.DescriptorsPrepared.WithLabelValues(intent.ContractKey).Inc()
	b.logger.InfoWithScope(logger.Builder, "Prepared %s.%s for %s (approval=%v)",
		intent.ContractKey, intent.FunctionName, callerAddress, prepared.RequiresApproval)

	return prepared, nil
}

func validateIntent(intent *models.StructuredIntent) error {
	if intent == nil || intent.IsError() {
		return fmt.Errorf("%w: intent carries no transaction", ErrMalformedIntent)
	}
	if intent.ContractKey == "" {
		return fmt.Errorf("%w: missing contract_key", ErrMalformedIntent)
	}
	if intent.FunctionName == "" {
		return fmt.Errorf("%w: missing function_name", ErrMalformedIntent)
	}
	if intent.Args == nil {
		return fmt.Errorf("%w: missing args", ErrMalformedIntent)
	}
	return nil
}

// attachApproval decides whether a spending allowance must precede the main
// call. The resolver's explicit flag wins; token-spending swaps are caught
// even when the flag is absent. Approval parameters come from the intent,
// falling back to the positional swap convention (args[0] is the amount in,
// args[2][0] is the input token).
func (b *Builder) attachApproval(prepared *models.PreparedTransaction, intent *models.StructuredIntent, spec *registry.ContractSpec, args []interface{}) {
	if !intent.RequiresApproval && !tokenSpendingFunctions[intent.FunctionName] {
		return
	}
	prepared.RequiresApproval = true
	metrics.ApprovalsRequired.Inc()

	token := intent.ApprovalToken
	amount := intent.ApprovalAmount
	if token == "" || amount == "" {
		token, amount = approvalFromArgs(args)
	}
	if token == "" || amount == "" {
		b.logger.NoticeWithScope(logger.Builder, "Approval required for %s.%s but parameters could not be determined",
			intent.ContractKey, intent.FunctionName)
		return
	}

	prepared.ApprovalTransaction = &models.TransactionDescriptor{
		ContractAddress: token,
		FunctionName:    "approve",
		Args:            []interface{}{spec.Address.Hex(), amount},
		Value:           "0.0",
		ABI:             b.registry.ApproveFragment(),
	}
}

// approvalFromArgs extracts the spending token and amount from the positional
// swap layout: [amountIn, amountOutMin, path, to, deadline].
func approvalFromArgs(args []interface{}) (token, amount string) {
	if len(args) < 3 {
		return "", ""
	}
	path, ok := args[2].([]interface{})
	if !ok || len(path) == 0 {
		return "", ""
	}
	first, ok := path[0].(string)
	if !ok {
		return "", ""
	}
	return first, stringify(args[0])
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}

// resolveArgs walks the argument list and substitutes the placeholder
// sentinels, recursing into nested arrays (swap paths) and objects
// (allowlist proofs). Everything else passes through untouched, so resolution
// is idempotent.
func resolveArgs(args []interface{}, callerAddress string, deadline int64) []interface{} {
	out := make([]interface{}, len(args))
	for i, arg := range args {
		out[i] = resolveValue(arg, callerAddress, deadline)
	}
	return out
}

func resolveValue(v interface{}, callerAddress string, deadline int64) interface{} {
	switch t := v.(type) {
	case string:
		switch t {
		case models.PlaceholderUserAddress:
			return callerAddress
		case models.PlaceholderDeadline:
			return deadline
		}
		return t
	case []interface{}:
		return resolveArgs(t, callerAddress, deadline)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, nested := range t {
			out[k] = resolveValue(nested, callerAddress, deadline)
		}
		return out
	default:
		return v
	}
}
