package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestFanout(t *testing.T) {
	n := Notification{ID: "n1", UserID: "u1", Type: TypeInfo}
	errDown := errors.New("endpoint down")

	first := &MockDeliverer{}
	first.On("Deliver", mock.Anything, n).Return(errDown)
	second := &MockDeliverer{}
	second.On("Deliver", mock.Anything, n).Return(nil)

	err := Fanout{first, second, &NoOpDeliverer{}}.Deliver(context.Background(), n)
	assert.ErrorIs(t, err, errDown)
	first.AssertExpectations(t)
	second.AssertExpectations(t)

	assert.NoError(t, Fanout{}.Deliver(context.Background(), n))
}
