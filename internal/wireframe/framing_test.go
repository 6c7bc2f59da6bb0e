package wireframe

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Foo string `json:"foo"`
}

func TestWriter_WriteMessage_NewlineDelimited(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteMessage(sample{Foo: "bar"}))
	assert.Equal(t, "{\"foo\":\"bar\"}\n", buf.String())
}

func TestReader_ReadMessage_NewlineDelimited(t *testing.T) {
	r := NewReader(bytes.NewBufferString("{\"foo\":\"a\"}\nnot json\n{\"foo\":\"b\"}\n"))
	var got sample
	require.NoError(t, r.Decode(&got))
	assert.Equal(t, "a", got.Foo)
	require.NoError(t, r.Decode(&got))
	assert.Equal(t, "b", got.Foo)
}

func TestReader_ReadMessage_ContentLength(t *testing.T) {
	body := `{"foo":"c"}`
	raw := "Content-Length: " + itoa(len(body)) + "\r\n\r\n" + body
	r := NewReader(bytes.NewBufferString(raw))
	var got sample
	require.NoError(t, r.Decode(&got))
	assert.Equal(t, "c", got.Foo)
}

func TestReader_MixedFraming(t *testing.T) {
	body := `{"foo":"d"}`
	raw := "{\"foo\":\"e\"}\n" + "Content-Length: " + itoa(len(body)) + "\r\n\r\n" + body
	r := NewReader(bytes.NewBufferString(raw))
	var got sample
	require.NoError(t, r.Decode(&got))
	assert.Equal(t, "e", got.Foo)
	require.NoError(t, r.Decode(&got))
	assert.Equal(t, "d", got.Foo)
}

func TestWriter_WriteContentLength(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteContentLength(sample{Foo: "z"}))
	r := NewReader(&buf)
	var got sample
	require.NoError(t, r.Decode(&got))
	assert.Equal(t, "z", got.Foo)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
