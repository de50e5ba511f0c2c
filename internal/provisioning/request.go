package provisioning

import (
	"fmt"

	"github.com/imamik/hcprov/internal/descriptor"
)

// Operation is the action a request asks for.
type Operation string

// Operations.
const (
	OperationCreate   Operation = "CREATE"
	OperationUpdate   Operation = "UPDATE"
	OperationDelete   Operation = "DELETE"
	OperationValidate Operation = "VALIDATE"
)

// Valid reports whether op is a known operation.
func (op Operation) Valid() bool {
	switch op {
	case OperationCreate, OperationUpdate, OperationDelete, OperationValidate:
		return true
	}
	return false
}

// Request is a workflow request delivered by a caller.
type Request struct {
	Operation        Operation
	ResourceRef      descriptor.Reference
	TaskRef          string
	IsMock           bool
	CustomProperties map[string]string
}

// Property returns a custom property or def when unset.
func (r Request) Property(key, def string) string {
	if v, ok := r.CustomProperties[key]; ok && v != "" {
		return v
	}
	return def
}

// ValidationError reports a malformed request. It is detected before any
// remote call is made.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (ve ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s: %s", ve.Field, ve.Message)
}

// Validate checks the fields every workflow needs.
func (r Request) Validate() error {
	if r.Operation == "" {
		return ValidationError{Field: "operation", Message: "operation is required"}
	}
	if !r.Operation.Valid() {
		return ValidationError{Field: "operation", Message: fmt.Sprintf("unknown operation %q", r.Operation)}
	}
	if r.TaskRef == "" {
		return ValidationError{Field: "taskReference", Message: "task reference is required"}
	}
	if err := r.ResourceRef.Validate(); err != nil {
		return ValidationError{Field: "resourceReference", Message: err.Error()}
	}
	return nil
}
