package utils

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fakeService struct {
	name     string
	rec      *recorder
	startErr error
}

func (s *fakeService) Name() string { return s.name }

func (s *fakeService) Start(ctx context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.rec.add("start " + s.name)
	return nil
}

func (s *fakeService) Stop(ctx context.Context) error {
	s.rec.add("stop " + s.name)
	return nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func newTestManager() *ServiceManager {
	return NewServiceManager(&ServiceConfig{GracefulShutdownTimeout: time.Second})
}

func TestServiceManager_Ordering(t *testing.T) {
	rec := &recorder{}
	sm := newTestManager()
	require.NoError(t, sm.RegisterService(&fakeService{name: "http", rec: rec}))
	require.NoError(t, sm.RegisterService(&fakeService{name: "console", rec: rec}))
	sm.Go("relay", func(ctx context.Context) error {
		<-ctx.Done()
		rec.add("relay done")
		return nil
	})
	sm.AddCloser("upstream", closerFunc(func() error {
		rec.add("close upstream")
		return nil
	}))
	assert.Equal(t, []string{"http", "console"}, sm.ListServices())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sm.Run(ctx) }()

	require.Eventually(t, func() bool { return len(rec.list()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, []string{
		"start http", "start console",
		"stop console", "stop http",
		"relay done",
		"close upstream",
	}, rec.list())
}

func TestServiceManager_DuplicateService(t *testing.T) {
	sm := newTestManager()
	require.NoError(t, sm.RegisterService(&fakeService{name: "a", rec: &recorder{}}))
	assert.Error(t, sm.RegisterService(&fakeService{name: "a", rec: &recorder{}}))
}

func TestServiceManager_StartFailureStopsStarted(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("bind failed")
	sm := newTestManager()
	require.NoError(t, sm.RegisterService(&fakeService{name: "a", rec: rec}))
	require.NoError(t, sm.RegisterService(&fakeService{name: "b", rec: rec, startErr: boom}))

	err := sm.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"start a", "stop a"}, rec.list())
}

func TestServiceManager_RunnerFailureTriggersShutdown(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("relay crashed")
	sm := newTestManager()
	require.NoError(t, sm.RegisterService(&fakeService{name: "a", rec: rec}))
	sm.Go("relay", func(ctx context.Context) error { return boom })

	err := sm.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, rec.list(), "stop a")
}

func TestServiceManager_TriggerShutdown(t *testing.T) {
	sm := newTestManager()
	sm.TriggerShutdown()
	sm.TriggerShutdown()
	assert.NoError(t, sm.Run(context.Background()))
}
