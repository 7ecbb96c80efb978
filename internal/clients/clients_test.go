package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/datallboy/gonzb/internal/errs"
	"github.com/datallboy/gonzb/internal/ipc"
	"github.com/datallboy/gonzb/internal/orchestrator"
)

func TestSABnzbdClient_SubmitParsesNzoID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("mode") != "addurl" {
			t.Fatalf("expected addurl, got %s", r.URL.Query().Get("mode"))
		}
		w.Write([]byte(`{"status":true,"nzo_ids":["SABnzbd_nzo_abc123"]}`))
	}))
	defer srv.Close()

	c := NewSABnzbdClient("sab", srv.URL, "key", "movies", true)
	out := c.Submit(context.Background(), orchestrator.CandidateSubmission{
		NZBURL: "http://indexer/foo.nzb", Title: "Foo", Category: "movies",
	})
	if !out.IsOK() || out.Value != "SABnzbd_nzo_abc123" {
		t.Fatalf("got %+v", out)
	}
}

func TestSABnzbdClient_SubmitRejectsOnStatusFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":false,"error":"duplicate"}`))
	}))
	defer srv.Close()

	c := NewSABnzbdClient("sab", srv.URL, "key", "", true)
	out := c.Submit(context.Background(), orchestrator.CandidateSubmission{NZBURL: "http://indexer/foo.nzb", Title: "Foo"})
	if out.Kind != errs.KindRejected || out.Reason != "duplicate" {
		t.Fatalf("got %+v", out)
	}
}

func TestSABnzbdClient_HistoryMapsCompletedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"history":{"slots":[{"nzo_id":"1","name":"Foo","status":"Completed","storage":"/d/Foo"},{"nzo_id":"2","name":"Bar","status":"Failed","fail_message":"bad par2"}]}}`))
	}))
	defer srv.Close()

	c := NewSABnzbdClient("sab", srv.URL, "key", "", true)
	hist, err := c.History(context.Background())
	if err != nil || len(hist) != 2 {
		t.Fatalf("got %+v err=%v", hist, err)
	}
	if !hist[0].Completed || hist[0].ContentPath != "/d/Foo" {
		t.Fatalf("got %+v", hist[0])
	}
	if hist[1].Completed || hist[1].FailureReason != "bad par2" {
		t.Fatalf("got %+v", hist[1])
	}
}

func TestNZBGetClient_SubmitFetchesAndEncodesContent(t *testing.T) {
	nzbSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<nzb>content</nzb>"))
	}))
	defer nzbSrv.Close()

	rpcSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":42}`))
	}))
	defer rpcSrv.Close()

	c := NewNZBGetClient("nzbget", rpcSrv.URL, "u", "p", "movies", true)
	out := c.Submit(context.Background(), orchestrator.CandidateSubmission{
		NZBURL: nzbSrv.URL + "/release.nzb", Title: "Foo",
	})
	if !out.IsOK() || out.Value != "42" {
		t.Fatalf("got %+v", out)
	}
}

func TestNZBGetClient_SubmitRejectsOnZeroNZBID(t *testing.T) {
	rpcSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":0}`))
	}))
	defer rpcSrv.Close()
	nzbSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer nzbSrv.Close()

	c := NewNZBGetClient("nzbget", rpcSrv.URL, "", "", "", true)
	out := c.Submit(context.Background(), orchestrator.CandidateSubmission{NZBURL: nzbSrv.URL + "/a.nzb", Title: "Foo"})
	if out.Kind != errs.KindRejected {
		t.Fatalf("got %+v", out)
	}
}

func TestNZBGetClient_HistoryMapsSuccessPrefix(t *testing.T) {
	rpcSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":[{"NZBID":1,"NZBName":"Foo","Status":"SUCCESS/ALL","FinalDir":"/d/Foo"},{"NZBID":2,"NZBName":"Bar","Status":"FAILURE/PAR2"}]}`))
	}))
	defer rpcSrv.Close()

	c := NewNZBGetClient("nzbget", rpcSrv.URL, "", "", "", true)
	hist, err := c.History(context.Background())
	if err != nil || len(hist) != 2 {
		t.Fatalf("got %+v err=%v", hist, err)
	}
	if !hist[0].Completed || hist[0].ContentPath != "/d/Foo" {
		t.Fatalf("got %+v", hist[0])
	}
	if hist[1].Completed {
		t.Fatalf("expected failure, got %+v", hist[1])
	}
}

func TestQBittorrentClient_SubmitLogsInAndAdds(t *testing.T) {
	var loggedIn bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/auth/login":
			loggedIn = true
			http.SetCookie(w, &http.Cookie{Name: "SID", Value: "abc"})
			w.Write([]byte("Ok."))
		case "/api/v2/torrents/add":
			if !loggedIn {
				t.Fatal("add called before login")
			}
			r.ParseMultipartForm(1 << 20)
			if r.FormValue("urls") != "magnet:?xt=foo" {
				t.Fatalf("got urls=%q", r.FormValue("urls"))
			}
			w.Write([]byte("Ok."))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewQBittorrentClient("qbt", srv.URL, "admin", "pw", "", true)
	out := c.Submit(context.Background(), orchestrator.CandidateSubmission{Magnet: "magnet:?xt=foo", Title: "Foo"})
	if !out.IsOK() || out.Value != "Foo" {
		t.Fatalf("got %+v", out)
	}
}

func TestQBittorrentClient_QueueAndHistoryPartitionByState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v2/torrents/info" {
			w.Write([]byte(`[{"hash":"a","name":"Downloading","state":"downloading"},{"hash":"b","name":"Done","state":"uploading"},{"hash":"c","name":"Broken","state":"error"}]`))
			return
		}
		t.Fatalf("unexpected path %s", r.URL.Path)
	}))
	defer srv.Close()

	c := NewQBittorrentClient("qbt", srv.URL, "", "", "", true)
	queue, err := c.Queue(context.Background())
	if err != nil || len(queue) != 1 || queue[0].ID != "a" {
		t.Fatalf("got %+v err=%v", queue, err)
	}
	hist, err := c.History(context.Background())
	if err != nil || len(hist) != 2 {
		t.Fatalf("got %+v err=%v", hist, err)
	}
	if !hist[0].Completed || hist[1].Completed {
		t.Fatalf("got %+v", hist)
	}
}

func TestNZBEngineClient_SubmitForwardsToAddNZB(t *testing.T) {
	nzbSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<nzb>content</nzb>"))
	}))
	defer nzbSrv.Close()

	engine := ipc.NewInProcess(nil, nil, nil, nil)
	var gotTitle string
	engine.Handle("add_nzb", func(args []json.RawMessage) (any, error) {
		json.Unmarshal(args[0], &gotTitle)
		return "item-1", nil
	})

	c := NewNZBEngineClient("engine", engine, "movies", true)
	out := c.Submit(context.Background(), orchestrator.CandidateSubmission{
		NZBURL: nzbSrv.URL + "/foo.nzb", Title: "Foo",
	})
	if !out.IsOK() || out.Value != "item-1" {
		t.Fatalf("got %+v", out)
	}
	if gotTitle != "Foo" {
		t.Fatalf("expected add_nzb to receive title, got %q", gotTitle)
	}
}

func TestNZBEngineClient_QueueMapsSnapshot(t *testing.T) {
	engine := ipc.NewInProcess(
		nil,
		func() any {
			return []map[string]string{{"ID": "1", "Name": "Foo"}}
		},
		nil,
		nil,
	)
	c := NewNZBEngineClient("engine", engine, "", true)
	queue, err := c.Queue(context.Background())
	if err != nil || len(queue) != 1 || queue[0].Title != "Foo" {
		t.Fatalf("got %+v err=%v", queue, err)
	}
}
