// Package serialization encodes the opaque byte tokens the engine stores for artifacts:
// reader and writer checkpoint tokens and persistent user data.
package serialization

import (
	"encoding/json"

	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// MarshalToken serializes v into a token. A nil v yields a nil token.
func MarshalToken(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		logger.Errorf("Failed to serialize token: %v", err)
		return nil, exception.NewBatchError("serialization", "Failed to serialize token", err, false, false)
	}
	return data, nil
}

// UnmarshalToken deserializes data into v. It reports false, leaving v untouched, when
// there is no token (fresh start).
func UnmarshalToken(data []byte, v any) (bool, error) {
	if len(data) == 0 || string(data) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		logger.Errorf("Failed to deserialize token: %v", err)
		return false, exception.NewBatchError("serialization", "Failed to deserialize token", err, false, false)
	}
	return true, nil
}
