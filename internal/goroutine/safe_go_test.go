package goroutine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSafeGo_RecoversPanic(t *testing.T) {
	ran := make(chan struct{})

	// Непогашенная panic уронила бы весь тестовый процесс.
	SafeGo(func() {
		close(ran)
		panic("boom")
	})

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("горутина не выполнилась")
	}

	// Даём panic дойти до recover, затем убеждаемся, что процесс жив.
	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	SafeGo(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("горутина не выполнилась")
	}
}

type ctxKey string

func TestSafeGoWithContext_PassesContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), ctxKey("k"), "v")
	got := make(chan string, 1)

	SafeGoWithContext(ctx, func(ctx context.Context) {
		value, _ := ctx.Value(ctxKey("k")).(string)
		got <- value
	})

	select {
	case value := <-got:
		assert.Equal(t, "v", value)
	case <-time.After(2 * time.Second):
		t.Fatal("горутина не выполнилась")
	}
}
