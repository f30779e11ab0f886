// Defines the validation interface for requests.

package dto

// Validatable is implemented by request types that can validate their fields.
// Wrap uses it as a type constraint so that every request is checked before
// its handler runs.
type Validatable interface {
	Validate() error
}
