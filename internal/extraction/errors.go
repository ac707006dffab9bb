package extraction

// FailureMessage is shown to the user when a transcription fails
const FailureMessage = "Failed to transcribe the documents. Please ensure the images are clear."

// Error is returned when the model call or its response fails. Message is
// safe to show to users; the cause is available through errors.Unwrap.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ConfigurationError is returned when the scanner is missing credentials or
// the document type has no configuration
type ConfigurationError struct {
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
