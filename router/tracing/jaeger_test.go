package tracing

import (
	"testing"

	"github.com/opentracing/opentracing-go"
	"github.com/pg-sharding/fedrouter/pkg/config"
	"github.com/stretchr/testify/assert"
)

func TestInitWithoutUrlKeepsNoopTracer(t *testing.T) {
	assert := assert.New(t)

	closer, err := InitJaegerTracer(config.JaegerCfg{})
	assert.NoError(err)
	assert.NoError(closer.Close())
	assert.IsType(opentracing.NoopTracer{}, opentracing.GlobalTracer())
}
