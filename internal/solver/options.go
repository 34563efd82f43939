package solver

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Branching orders accepted by search.order.
const (
	OrderInput = "input" // operation name order
	OrderSPT   = "spt"   // shortest processing time first
	OrderLPT   = "lpt"   // longest processing time first
)

// Options tune the search.
type Options struct {
	Models int    // models per handle before the search reports exhaustion, 0 = all
	Order  string // branching order
	Prune  bool   // machine and job load lower bounds
}

// DefaultOptions returns the options a fresh engine starts with.
func DefaultOptions() Options {
	return Options{
		Models: 0,
		Order:  OrderSPT,
		Prune:  true,
	}
}

// OptionKeys lists the keys Configure understands.
func OptionKeys() []string {
	keys := []string{"solve.models", "search.order", "search.prune"}
	sort.Strings(keys)
	return keys
}

// Set applies one key=value option.
func (o *Options) Set(key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case "solve.models":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: solve.models=%q must be a non-negative integer", ErrInvalidOption, value)
		}
		o.Models = n
	case "search.order":
		switch value {
		case OrderInput, OrderSPT, OrderLPT:
			o.Order = value
		default:
			return fmt.Errorf("%w: search.order=%q (valid: %s, %s, %s)", ErrInvalidOption, value, OrderInput, OrderSPT, OrderLPT)
		}
	case "search.prune":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: search.prune=%q must be a boolean", ErrInvalidOption, value)
		}
		o.Prune = b
	default:
		return fmt.Errorf("%w: unknown key %q (valid: %s)", ErrInvalidOption, key, strings.Join(OptionKeys(), ", "))
	}
	return nil
}

// ParseOption splits a "key=value" command-line option.
func ParseOption(raw string) (string, string, error) {
	key, value, ok := strings.Cut(raw, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("%w: %q is not key=value", ErrInvalidOption, raw)
	}
	return key, value, nil
}
