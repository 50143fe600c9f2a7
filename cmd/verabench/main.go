// Command verabench replays scripted interviews against a running service and
// reports per-operation latency, optionally exercising the websocket
// transcription stream with synthesized WAV audio.
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antoniostano/vera/internal/audio"
	"github.com/antoniostano/vera/internal/protocol"
)

type options struct {
	baseURL        string
	roleID         string
	sessions       int
	concurrency    int
	answers        []string
	endEarlyAfter  int
	transcribe     bool
	requestTimeout time.Duration
	verbose        bool
}

var defaultAnswers = []string{
	"in my previous team i owned the ingestion service and kept it healthy through two busy seasons",
	"i usually start from the logs and the recent deploys before touching any code at all",
	"the part i enjoy most is untangling slow queries and making dashboards that people actually read",
	"we ran weekly reviews where everyone walked through one incident and what we changed afterwards",
	"my manager would say i am calm under pressure and honest about what i do not know yet",
	"outside of work i mentor two junior developers from my old bootcamp every other week",
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "verabench: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "verabench: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var cfg options
	var answersRaw string
	flag.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8080", "service base URL")
	flag.StringVar(&cfg.roleID, "role-id", "job_1", "role to interview for")
	flag.IntVar(&cfg.sessions, "sessions", 10, "number of interviews to replay")
	flag.IntVar(&cfg.concurrency, "concurrency", 4, "concurrent interviews")
	flag.IntVar(&cfg.endEarlyAfter, "end-early-after", 0, "end after N answers instead of running to the cap (0 = run to cap)")
	flag.BoolVar(&cfg.transcribe, "transcribe", false, "also run one websocket transcription per session")
	flag.DurationVar(&cfg.requestTimeout, "request-timeout", 45*time.Second, "per-request timeout")
	flag.StringVar(&answersRaw, "answers", "", "answers separated by '|' (optional)")
	flag.BoolVar(&cfg.verbose, "verbose", false, "print per-session progress")
	flag.Parse()

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	if cfg.sessions <= 0 {
		return options{}, fmt.Errorf("sessions must be > 0")
	}
	if cfg.concurrency <= 0 {
		cfg.concurrency = 1
	}
	if cfg.concurrency > cfg.sessions {
		cfg.concurrency = cfg.sessions
	}
	if strings.TrimSpace(answersRaw) == "" {
		cfg.answers = append([]string(nil), defaultAnswers...)
	} else {
		for _, part := range strings.Split(answersRaw, "|") {
			if a := strings.TrimSpace(part); a != "" {
				cfg.answers = append(cfg.answers, a)
			}
		}
		if len(cfg.answers) == 0 {
			return options{}, fmt.Errorf("answers produced no non-empty entries")
		}
	}
	return cfg, nil
}

// recorder aggregates latency samples per operation across workers.
type recorder struct {
	mu      sync.Mutex
	samples map[string][]time.Duration
	errs    int
}

func (r *recorder) observe(op string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.samples == nil {
		r.samples = make(map[string][]time.Duration)
	}
	r.samples[op] = append(r.samples[op], d)
}

func (r *recorder) fail() {
	r.mu.Lock()
	r.errs++
	r.mu.Unlock()
}

func (r *recorder) report(out io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ops := make([]string, 0, len(r.samples))
	for op := range r.samples {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	fmt.Fprintf(out, "%-14s %8s %10s %10s %10s %10s\n", "operation", "count", "min", "p50", "p95", "max")
	for _, op := range ops {
		samples := append([]time.Duration(nil), r.samples[op]...)
		sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
		fmt.Fprintf(out, "%-14s %8d %10s %10s %10s %10s\n",
			op, len(samples),
			samples[0].Round(time.Microsecond),
			quantile(samples, 0.50).Round(time.Microsecond),
			quantile(samples, 0.95).Round(time.Microsecond),
			samples[len(samples)-1].Round(time.Microsecond),
		)
	}
	if r.errs > 0 {
		fmt.Fprintf(out, "failed sessions: %d\n", r.errs)
	}
}

func quantile(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(q * float64(len(sorted)-1))
	return sorted[idx]
}

func run(cfg options) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	client := &http.Client{Timeout: cfg.requestTimeout}
	rec := &recorder{}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < cfg.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range jobs {
				if err := runSession(ctx, client, cfg, rec, n); err != nil {
					rec.fail()
					fmt.Fprintf(os.Stderr, "verabench: session %d: %v\n", n, err)
				}
			}
		}()
	}
	start := time.Now()
	for n := 0; n < cfg.sessions; n++ {
		jobs <- n
	}
	close(jobs)
	wg.Wait()

	fmt.Printf("verabench: %d sessions in %s (concurrency %d)\n", cfg.sessions, time.Since(start).Round(time.Millisecond), cfg.concurrency)
	rec.report(os.Stdout)
	return nil
}

func runSession(ctx context.Context, client *http.Client, cfg options, rec *recorder, n int) error {
	type startResponse struct {
		SessionID string `json:"session_id"`
		Question  string `json:"question"`
	}
	var started startResponse
	if err := postJSON(ctx, client, rec, "start", cfg.baseURL+"/v1/interviews",
		map[string]string{"role_id": cfg.roleID}, http.StatusCreated, &started); err != nil {
		return err
	}
	if cfg.verbose {
		fmt.Printf("verabench: session %d id=%s q1=%q\n", n, started.SessionID, started.Question)
	}

	type answerResponse struct {
		Question          string `json:"question"`
		InterviewComplete bool   `json:"interview_complete"`
	}
	answered := 0
	for {
		if cfg.endEarlyAfter > 0 && answered >= cfg.endEarlyAfter {
			break
		}
		var res answerResponse
		err := postJSON(ctx, client, rec, "answer",
			cfg.baseURL+"/v1/interviews/"+url.PathEscape(started.SessionID)+"/answers",
			map[string]string{"answer": cfg.answers[answered%len(cfg.answers)]}, http.StatusOK, &res)
		if err != nil {
			return err
		}
		answered++
		if res.InterviewComplete {
			break
		}
	}

	if err := postJSON(ctx, client, rec, "end",
		cfg.baseURL+"/v1/interviews/"+url.PathEscape(started.SessionID)+"/end",
		nil, http.StatusOK, nil); err != nil {
		return err
	}

	if cfg.transcribe {
		if err := runTranscription(ctx, cfg, rec); err != nil {
			return fmt.Errorf("transcription: %w", err)
		}
	}
	return nil
}

func postJSON(ctx context.Context, client *http.Client, rec *recorder, op, endpoint string, body any, wantStatus int, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	rec.observe(op, time.Since(start))
	if err != nil {
		return err
	}
	if res.StatusCode != wantStatus {
		return fmt.Errorf("%s HTTP %d: %s", op, res.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out != nil {
		return json.Unmarshal(raw, out)
	}
	return nil
}

func runTranscription(ctx context.Context, cfg options, rec *recorder) error {
	wav, err := audio.EncodeWAVPCM16LE(make([]byte, 16000), 16000)
	if err != nil {
		return err
	}

	wsURL, err := streamURL(cfg.baseURL)
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	start := time.Now()
	err = conn.WriteJSON(protocol.TranscribeRequest{
		Type:        protocol.TypeTranscribeRequest,
		Format:      "wav",
		AudioBase64: base64.StdEncoding.EncodeToString(wav),
	})
	if err != nil {
		return err
	}

	for {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Minute))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		switch env.Type {
		case protocol.TypeTranscriptResult:
			rec.observe("transcribe", time.Since(start))
			return nil
		case protocol.TypeErrorEvent:
			var ev protocol.ErrorEvent
			_ = json.Unmarshal(data, &ev)
			return fmt.Errorf("stream error %s: %s", ev.Code, ev.Message)
		}
	}
}

func streamURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base-url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/transcriptions/stream"
	return u.String(), nil
}
