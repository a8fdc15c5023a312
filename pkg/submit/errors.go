package submit

import "fmt"

// NetworkError is a failure to reach the server or a non-2xx answer. The
// operator's labels are intact and the submission can be retried.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("submit to %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("submit to %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProtocolError is a 2xx answer whose body is not the expected JSON.
type ProtocolError struct {
	Body []byte
	Err  error
}

func (e *ProtocolError) Error() string {
	const max = 200
	body := string(e.Body)
	if len(body) > max {
		body = body[:max] + "..."
	}
	return fmt.Sprintf("malformed server response %q: %v", body, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
