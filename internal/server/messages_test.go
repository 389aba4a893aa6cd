package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_serializeMessage(t *testing.T) {
	message := &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        1,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: 200,
		},
	}

	// Ensure the timestamp is in the expected format
	expected := `{"id":1,"timestamp":"` + message.Timestamp.Format(time.RFC3339Nano) +
		`","response":{"response_code":200}}`

	bytes, err := serializeMessage(message)
	assert.NoError(t, err, "expected no error during serialization")
	assert.Equal(t, expected, string(bytes), "expected serialized message to match the expected format")
}

func TestNoErrOK(t *testing.T) {
	msg := NoErrOK(42)
	assert.Equal(t, 42, msg.Id, "expected message id to match")
	assert.NotNil(t, msg.Response, "expected response to be set")
	assert.Equal(t, 200, msg.Response.ResponseCode, "expected response code 200")
	assert.Empty(t, msg.Response.Error, "expected no error message")
}

func TestErrInvalidMessage(t *testing.T) {
	t.Run("with id", func(t *testing.T) {
		msg := ErrInvalidMessage(7)
		assert.Equal(t, 7, msg.Id, "expected message id to match")
		assert.Equal(t, 400, msg.Response.ResponseCode, "expected response code 400")
		assert.NotEmpty(t, msg.Response.Error, "expected error message")
	})

	t.Run("without id", func(t *testing.T) {
		msg := ErrInvalidMessage(-1)
		assert.Zero(t, msg.Id, "expected no message id")
		assert.Equal(t, 400, msg.Response.ResponseCode, "expected response code 400")
	})
}

func TestErrServiceUnavailable(t *testing.T) {
	msg := ErrServiceUnavailable(3)
	assert.Equal(t, 3, msg.Id, "expected message id to match")
	assert.Equal(t, 503, msg.Response.ResponseCode, "expected response code 503")
}
