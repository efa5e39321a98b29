package platform

import (
	"context"
	"errors"
	"testing"
)

type fakeClient struct {
	name     string
	running  bool
	identity string
	idErr    error
}

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) Start(ctx context.Context) error { f.running = true; return nil }

func (f *fakeClient) Stop(ctx context.Context) error { f.running = false; return nil }

func (f *fakeClient) IsRunning() bool { return f.running }

func (f *fakeClient) Identity(ctx context.Context) (string, error) {
	return f.identity, f.idErr
}
func (f *fakeClient) SendGroupImage(ctx context.Context, groupID int64, img Image) error { return nil }
func (f *fakeClient) SendPrivateImage(ctx context.Context, userID int64, img Image) error {
	return nil
}
func (f *fakeClient) SendGroupText(ctx context.Context, groupID int64, text string) error { return nil }
func (f *fakeClient) SendPrivateText(ctx context.Context, userID int64, text string) error {
	return nil
}

func registryOf(clients ...Client) *Registry {
	r := &Registry{}
	for _, c := range clients {
		r.Register(c)
	}
	return r
}

func TestSelect_FirstRunningWinsWhenUnpinned(t *testing.T) {
	stopped := &fakeClient{name: "onebot", running: false}
	running := &fakeClient{name: "telegram", running: true}
	r := registryOf(stopped, running)

	got, err := r.Select(context.Background(), "", "")
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if got.Name() != "telegram" {
		t.Fatalf("selected %q, want telegram", got.Name())
	}
}

func TestSelect_NoRunningClient(t *testing.T) {
	r := registryOf(&fakeClient{name: "onebot", running: false})

	_, err := r.Select(context.Background(), "", "")
	if !errors.Is(err, ErrNoClientAvailable) {
		t.Fatalf("error = %v, want ErrNoClientAvailable", err)
	}
}

func TestSelect_PinnedByPlatformName(t *testing.T) {
	a := &fakeClient{name: "onebot", running: true}
	b := &fakeClient{name: "discord", running: true}
	r := registryOf(a, b)

	got, err := r.Select(context.Background(), "discord", "")
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if got.Name() != "discord" {
		t.Fatalf("selected %q, want discord", got.Name())
	}
}

func TestSelect_PinnedBySelfID(t *testing.T) {
	a := &fakeClient{name: "onebot", running: true, identity: "111"}
	b := &fakeClient{name: "onebot", running: true, identity: "222"}
	r := registryOf(a, b)

	got, err := r.Select(context.Background(), "onebot", "222")
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if got != b {
		t.Fatal("selected wrong instance for pinned self id")
	}
}

func TestSelect_PinnedNoMatch(t *testing.T) {
	r := registryOf(&fakeClient{name: "onebot", running: true, identity: "111"})

	_, err := r.Select(context.Background(), "onebot", "999")
	if !errors.Is(err, ErrNoMatchingClient) {
		t.Fatalf("error = %v, want ErrNoMatchingClient", err)
	}

	_, err = r.Select(context.Background(), "telegram", "")
	if !errors.Is(err, ErrNoMatchingClient) {
		t.Fatalf("error = %v, want ErrNoMatchingClient", err)
	}
}

func TestSelect_IdentityFailureSkipsClient(t *testing.T) {
	broken := &fakeClient{name: "onebot", running: true, idErr: errors.New("not connected")}
	healthy := &fakeClient{name: "onebot", running: true, identity: "222"}
	r := registryOf(broken, healthy)

	got, err := r.Select(context.Background(), "", "222")
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if got != healthy {
		t.Fatal("identity failure should skip to the next client")
	}
}
