package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
)

func TestRegistry(t *testing.T) {
	rzp := newTestRazorpay(t, &fakeRazorpayClient{})
	sqr := newTestSquare(t, &fakeSquareClient{})

	reg, err := NewRegistry("razorpay", rzp, sqr, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"razorpay", "square"}, reg.Names())

	gw, err := reg.Get("")
	require.NoError(t, err)
	assert.Equal(t, rzp, gw)

	gw, err = reg.Get("SQUARE")
	require.NoError(t, err)
	assert.Equal(t, sqr, gw)

	_, err = reg.Get("stripe")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = reg.Get("manual")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRegistryValidation(t *testing.T) {
	_, err := NewRegistry("razorpay")
	assert.Error(t, err)

	_, err = NewRegistry("square", newTestRazorpay(t, &fakeRazorpayClient{}))
	assert.Error(t, err)

	rzp := newTestRazorpay(t, &fakeRazorpayClient{})
	_, err = NewRegistry("razorpay", rzp, rzp)
	assert.Error(t, err)
}
