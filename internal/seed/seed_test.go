package seed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/0xa1bed0/cratesmirror/internal/catalogapi"
	"github.com/0xa1bed0/cratesmirror/internal/catalogapi/catalogmock"
	"github.com/0xa1bed0/cratesmirror/internal/exclude"
	"github.com/0xa1bed0/cratesmirror/internal/resolve"
)

func TestBuildGlobalPullAddsBothVersions(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := catalogmock.NewMockClient(ctrl)
	client.EXPECT().
		TopByDownloads(gomock.Any(), 1, 100, "").
		Return([]catalogapi.Crate{
			{Name: "serde", MaxVersion: "1.0.200", MaxStableVersion: "1.0.200"},
			{Name: "tokio", MaxVersion: "2.0.0-alpha", MaxStableVersion: ""},
		}, nil)

	b := NewBuilder(client, exclude.New(nil))
	b.GlobalPages = 1
	b.Categories = nil

	w, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := w["serde"]["1.0.200"]; !ok {
		t.Fatal("expected serde 1.0.200 in worklist")
	}
	if _, ok := w["tokio"]["2.0.0-alpha"]; !ok {
		t.Fatal("expected tokio's prerelease max_version even with no stable version")
	}
}

func TestBuildExcludesAtInsertion(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := catalogmock.NewMockClient(ctrl)
	client.EXPECT().
		TopByDownloads(gomock.Any(), 1, 100, "").
		Return([]catalogapi.Crate{{Name: "banned-crate", MaxVersion: "1.0.0"}}, nil)

	b := NewBuilder(client, exclude.New([]string{"banned-*"}))
	b.GlobalPages = 1
	b.Categories = nil

	w, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := w["banned-crate"]; ok {
		t.Fatal("excluded crate must never enter the worklist")
	}
}

func TestBuildStaticAdditionsAndCommands(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := catalogmock.NewMockClient(ctrl)

	b := NewBuilder(client, exclude.New(nil))
	b.GlobalPages = 0
	b.Categories = nil
	b.Additions = []string{"ripgrep"}
	b.Commands = []string{"cargo-watch"}

	w, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := w["ripgrep"][resolve.Latest]; !ok {
		t.Fatal("expected ripgrep seeded with the latest sentinel")
	}
	if _, ok := w["cargo-watch"][resolve.Latest]; !ok {
		t.Fatal("expected cargo-watch seeded with the latest sentinel")
	}
}

func TestBuildAccumulatesPerCategoryErrors(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := catalogmock.NewMockClient(ctrl)
	client.EXPECT().
		TopByDownloads(gomock.Any(), 1, 50, "embedded").
		Return(nil, errBoom)
	client.EXPECT().
		TopByDownloads(gomock.Any(), 1, 50, "mathematics").
		Return([]catalogapi.Crate{{Name: "nalgebra", MaxVersion: "0.32.0"}}, nil)

	b := NewBuilder(client, exclude.New(nil))
	b.GlobalPages = 0
	b.Categories = []CategoryPull{
		{Category: "embedded", Pages: 1, PerPage: 50},
		{Category: "mathematics", Pages: 1, PerPage: 50},
	}

	w, err := b.Build(context.Background())
	if err == nil {
		t.Fatal("expected the embedded category's error to surface")
	}
	if _, ok := w["nalgebra"]; !ok {
		t.Fatal("mathematics category should still have been pulled despite embedded's failure")
	}
}

func TestPullCookbookAddsDependencyNames(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[dependencies]\nrand = \"0.8\"\nserde = { version = \"1.0\", features = [\"derive\"] }\n"))
	}))
	defer srv.Close()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	client := catalogmock.NewMockClient(ctrl)

	b := NewBuilder(client, exclude.New(nil))
	b.GlobalPages = 0
	b.Categories = nil
	b.Cookbook = true
	b.CookbookURL = srv.URL

	w, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := w["rand"][resolve.Latest]; !ok {
		t.Fatal("expected rand from the cookbook manifest")
	}
	if _, ok := w["serde"][resolve.Latest]; !ok {
		t.Fatal("expected serde from the cookbook manifest")
	}
}

var errBoom = &stubError{"catalog unavailable"}

type stubError struct{ msg string }

func (e *stubError) Error() string { return e.msg }
