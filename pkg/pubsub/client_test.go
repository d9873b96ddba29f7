package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResourceNames(t *testing.T) {
	assert.Equal(t, "projects/p1/topics/payments", topicResourceName("p1", " payments "))
	assert.Equal(t, "projects/p1/subscriptions/receipts", subscriptionResourceName("p1", "receipts"))
	assert.Equal(t, "projects/other/topics/x", topicResourceName("p1", "projects/other/topics/x"))
	assert.Equal(t, "", topicResourceName("p1", ""))
	assert.Equal(t, "", subscriptionResourceName("", "receipts"))
}

func TestTrimmedNamesSkipsBlanks(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, trimmedNames([]string{" a ", "", "b"}))
}

func TestNilClientHandles(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("payments"))
	assert.Nil(t, c.Subscription("receipts"))
	assert.NoError(t, c.Close())
}
