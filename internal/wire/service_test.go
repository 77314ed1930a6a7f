package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServiceDescShape(t *testing.T) {
	assert.Equal(t, ServiceName, ServiceDesc.ServiceName)
	assert.Len(t, ServiceDesc.Methods, 3)
	assert.Len(t, ServiceDesc.Streams, 2)

	names := map[string]bool{}
	for _, m := range ServiceDesc.Methods {
		names[m.MethodName] = true
	}
	assert.True(t, names["SetConfig"])
	assert.True(t, names["DefaultPolicyExpr"])
	assert.True(t, names["ExplainDefaultQuery"])

	assert.Equal(t, "QuerySchemas", ServiceDesc.Streams[0].StreamName)
	assert.False(t, ServiceDesc.Streams[0].ClientStreams)
	assert.True(t, ServiceDesc.Streams[0].ServerStreams)

	assert.Equal(t, "Query", ServiceDesc.Streams[1].StreamName)
	assert.True(t, ServiceDesc.Streams[1].ClientStreams)
	assert.True(t, ServiceDesc.Streams[1].ServerStreams)
}

func TestJSONCodecRoundTrip(t *testing.T) {
	c := jsonCodec{}
	in := &SetConfigRequest{ConfigJSON: `{"a":1}`}
	data, err := c.Marshal(in)
	assert.NoError(t, err)

	var out SetConfigRequest
	assert.NoError(t, c.Unmarshal(data, &out))
	assert.Equal(t, in.ConfigJSON, out.ConfigJSON)
	assert.Equal(t, "json", c.Name())
}
