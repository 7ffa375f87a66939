package tracing

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsCredentials(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/orders"),
		attribute.String("Authorization", "Bearer abc"),
		attribute.String("vnp_SecureHash", "deadbeef"),
		attribute.Int("http.status_code", 200),
	)
	require.Len(t, attrs, 2)
	require.Equal(t, attribute.Key("http.route"), attrs[0].Key)
	require.Equal(t, attribute.Key("http.status_code"), attrs[1].Key)
}

func TestSafeAttributesTruncatesLongValues(t *testing.T) {
	attrs := SafeAttributes(attribute.String("http.route", strings.Repeat("a", 1000)))
	require.Len(t, attrs, 1)
	require.Len(t, attrs[0].Value.AsString(), maxAttributeLength)
}

func TestSafeError(t *testing.T) {
	require.Nil(t, SafeError(nil))
	require.EqualError(t, SafeError(errors.New(" boom ")), "boom")
}
