package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOnlineProbesHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	api := New(srv.URL, "")
	if !api.Online() {
		t.Error("healthy server reported offline")
	}

	srv.Close()
	if api.Online() {
		t.Error("closed server reported online")
	}
}

func TestCreateFunkoSendsFormWithAuth(t *testing.T) {
	var gotAuth, gotName, gotPrice, gotCategoria string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/funkos" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		gotName = r.FormValue("name")
		gotPrice = r.FormValue("price")
		gotCategoria = r.FormValue("categoria")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	api := New(srv.URL, "tok123")
	err := api.CreateFunko(context.Background(), FunkoPayload{
		Name: "Thor", Price: 20.5, Categoria: "MARVEL",
	})
	if err != nil {
		t.Fatalf("CreateFunko: %v", err)
	}
	if gotAuth != "Bearer tok123" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotName != "Thor" || gotCategoria != "MARVEL" {
		t.Errorf("form = name %q categoria %q", gotName, gotCategoria)
	}
	if gotPrice == "" {
		t.Error("price missing from form")
	}
}

func TestRejectedRequestIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	api := New(srv.URL, "tok")
	err := api.CreateCategory(context.Background(), CategoryPayload{Name: "MARVEL"})
	if err == nil {
		t.Fatal("409 response accepted as success")
	}
	if IsUnreachable(err) {
		t.Error("server rejection reported as unreachable")
	}
}

func TestTransportFailureIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	srv.Close()

	api := New(srv.URL, "tok")
	err := api.CreateFunko(context.Background(), FunkoPayload{
		Name: "Thor", Price: 20.5, Categoria: "MARVEL",
	})
	if err == nil {
		t.Fatal("request against a closed server succeeded")
	}
	if !IsUnreachable(err) {
		t.Errorf("transport failure not marked unreachable: %v", err)
	}

	if err := api.DeleteCategory(context.Background(), "c1"); !IsUnreachable(err) {
		t.Errorf("delete transport failure not marked unreachable: %v", err)
	}
}

func TestExecutorsDecodeQueuedPayloads(t *testing.T) {
	var gotPath, gotName string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotName = r.FormValue("name")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	execs := Executors(New(srv.URL, "tok"))
	funkoExec, ok := execs["funko"]
	if !ok {
		t.Fatal("no funko executor")
	}
	if _, ok := execs["categoria"]; !ok {
		t.Fatal("no categoria executor")
	}

	err := funkoExec.Update(context.Background(), "7",
		[]byte(`{"name":"Loki","price":8,"categoria":"MARVEL"}`))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if gotPath != "/api/funkos/7" {
		t.Errorf("path = %q", gotPath)
	}
	if gotName != "Loki" {
		t.Errorf("decoded name = %q", gotName)
	}

	if err := funkoExec.Create(context.Background(), []byte(`not-json`)); err == nil {
		t.Error("malformed payload accepted")
	}
}
