package solana

import (
	"encoding/json"
	"fmt"

	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/pkg/errors"
)

var (
	ErrTransactionFailed = errors.New("transaction failed")
	ErrBlockhashExpired  = errors.New("blockhash expired before confirmation")
	ErrConfirmTimeout    = errors.New("timed out waiting for confirmation")
	ErrAccountNotFound   = errors.New("account not found")
)

// TransactionError is returned when the cluster rejects a transaction,
// either during preflight simulation or after landing with an error status.
type TransactionError struct {
	Signature sol.Signature
	Preflight bool
	// Err is the cluster's error payload: an instruction error object for
	// landed transactions, or the *jsonrpc.RPCError returned by preflight.
	Err interface{}
}

func (e *TransactionError) Error() string {
	stage := "on-chain"
	if e.Preflight {
		stage = "preflight"
	}
	return fmt.Sprintf("transaction %s failed (%s): %v", e.Signature, stage, e.Err)
}

func (e *TransactionError) Unwrap() []error {
	out := []error{ErrTransactionFailed}
	if cause, ok := e.Err.(error); ok {
		out = append(out, cause)
	}
	return out
}

// codeSimulationFailed is the JSON-RPC code for a failed preflight. Other
// server errors (node unhealthy, rate limits) say nothing about the program.
const codeSimulationFailed = -32002

// IsRejection reports whether err means the cluster processed the
// transaction and refused it, as opposed to the transaction never being
// evaluated.
func IsRejection(err error) bool {
	return err != nil && errors.Is(err, ErrTransactionFailed)
}

// InstructionError is a program failure attributed to one instruction of a
// transaction. Detail is the runtime's payload, e.g. {"Custom": 6} or
// "AccountAlreadyInitialized".
type InstructionError struct {
	Index  int
	Detail interface{}
}

// AsInstructionError extracts the instruction error carried by err, from
// either a landed transaction's status or a failed preflight simulation.
// Fee, signature and node errors carry none.
func AsInstructionError(err error) (InstructionError, bool) {
	var txErr *TransactionError
	if !errors.As(err, &txErr) {
		return InstructionError{}, false
	}
	payload := txErr.Err
	if rpcErr, ok := payload.(*jsonrpc.RPCError); ok {
		if rpcErr.Code != codeSimulationFailed {
			return InstructionError{}, false
		}
		data, ok := rpcErr.Data.(map[string]interface{})
		if !ok {
			return InstructionError{}, false
		}
		payload = data["err"]
	}
	return parseInstructionError(payload)
}

// IsProgramError reports whether err is an instruction error raised by the
// instruction at index.
func IsProgramError(err error, index int) bool {
	ie, ok := AsInstructionError(err)
	return ok && ie.Index == index
}

// parseInstructionError reads {"InstructionError": [index, detail]}.
func parseInstructionError(v interface{}) (InstructionError, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return InstructionError{}, false
	}
	pair, ok := m["InstructionError"].([]interface{})
	if !ok || len(pair) != 2 {
		return InstructionError{}, false
	}
	var idx int
	switch n := pair[0].(type) {
	case float64:
		idx = int(n)
	case int:
		idx = n
	case uint8:
		idx = int(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return InstructionError{}, false
		}
		idx = int(i)
	default:
		return InstructionError{}, false
	}
	return InstructionError{Index: idx, Detail: pair[1]}, true
}
