// Package monitoring turns a running simulation into a web server that
// reports the clock, the stages, their buffers and their taps.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/jpegsim/stream"
	"github.com/sarchlab/jpegsim/timing/buffer"
	"github.com/sarchlab/jpegsim/timing/clock"
	"github.com/sarchlab/jpegsim/timing/stage"
)

// DefaultProfileDuration is how long /api/profile samples the CPU.
const DefaultProfileDuration = time.Second

// Monitor can turn a simulation into a server and allows external monitoring
// of the simulation.
type Monitor struct {
	lock sync.Mutex

	env         *clock.Environment
	stages      []*stage.ProcessingStage
	buffers     []*buffer.FIFO
	taps        []*stream.Tap
	portNumber  int
	openBrowser bool

	listener net.Listener
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser opens the monitor in a browser when the server starts.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// RegisterEnvironment registers the clock environment of the simulation.
func (m *Monitor) RegisterEnvironment(env *clock.Environment) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.env = env
}

// RegisterStage registers a stage with its buffers and taps. Taps are only
// available once the stage is wired.
func (m *Monitor) RegisterStage(pe *stage.ProcessingStage) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.stages = append(m.stages, pe)
	m.buffers = append(m.buffers, pe.Buffers()...)
	m.taps = append(m.taps, pe.Taps()...)
}

// RegisterTap registers a tap that does not belong to a stage.
func (m *Monitor) RegisterTap(t *stream.Tap) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.taps = append(m.taps, t)
}

// Router returns the HTTP routes of the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine)
	r.HandleFunc("/api/continue", m.continueEngine)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/list_components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/stats/{name}", m.stageStats)
	r.HandleFunc("/api/buffers", m.listBuffers)
	r.HandleFunc("/api/list_taps", m.listTaps)
	r.HandleFunc("/api/taps/{name}", m.tapChanges)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)

	return r
}

// StartServer starts the monitor as a web server and returns its URL.
func (m *Monitor) StartServer() (string, error) {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return "", fmt.Errorf("failed to listen for monitoring: %w", err)
	}

	m.listener = listener

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	slog.Info("monitoring: serving", "url", url)

	router := m.Router()

	go func() {
		err := http.Serve(listener, router)
		if err != nil && !errors.Is(err, net.ErrClosed) {
			slog.Error("monitoring: server stopped", "error", err)
		}
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url + "/api/list_components"); err != nil {
			slog.Warn("monitoring: cannot open browser", "error", err)
		}
	}

	return url, nil
}

// StopServer closes the listener of a started server.
func (m *Monitor) StopServer() error {
	if m.listener == nil {
		return nil
	}

	err := m.listener.Close()
	m.listener = nil

	return err
}

// inspect runs f while no edge is running. Handlers read simulation state
// only inside inspect, as the simulation runs on another goroutine.
func (m *Monitor) inspect(f func()) {
	m.lock.Lock()
	env := m.env
	m.lock.Unlock()

	if env == nil {
		f()
		return
	}

	env.Inspect(f)
}

func (m *Monitor) engineOr503(w http.ResponseWriter) sim.Engine {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.env == nil {
		http.Error(w, "No environment registered", http.StatusServiceUnavailable)
		return nil
	}

	return m.env.Engine()
}

// pauseEngine stops the engine before its next event. Edges run with
// Environment.Step are not affected.
func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	engine := m.engineOr503(w)
	if engine == nil {
		return
	}

	engine.Pause()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	engine := m.engineOr503(w)
	if engine == nil {
		return
	}

	engine.Continue()
	_, err := w.Write(nil)
	dieOnErr(err)
}

type nowRsp struct {
	Now   float64 `json:"now"`
	Cycle uint64  `json:"cycle"`
	Reset bool    `json:"reset"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	env := m.env
	m.lock.Unlock()

	if env == nil {
		http.Error(w, "No environment registered", http.StatusServiceUnavailable)
		return
	}

	var rsp nowRsp

	env.Inspect(func() {
		rsp = nowRsp{
			Now:   float64(env.Now()),
			Cycle: env.Cycle(),
			Reset: env.InReset(),
		}
	})

	writeJSON(w, rsp)
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	defer m.lock.Unlock()

	names := []string{}
	if m.env != nil {
		names = append(names, m.env.Name())
	}

	for _, pe := range m.stages {
		names = append(names, pe.Name())
	}

	writeJSON(w, names)
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	component := m.findComponentOr404(w, name)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)

	buf := bytes.NewBuffer(nil)

	var err error

	m.inspect(func() {
		err = serializer.Serialize(buf)
	})
	dieOnErr(err)

	_, err = w.Write(buf.Bytes())
	dieOnErr(err)
}

func (m *Monitor) findComponentOr404(w http.ResponseWriter, name string) any {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.env != nil && m.env.Name() == name {
		return m.env
	}

	if pe := m.findStage(name); pe != nil {
		return pe
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Component not found"))
	dieOnErr(err)

	return nil
}

func (m *Monitor) findStage(name string) *stage.ProcessingStage {
	for _, pe := range m.stages {
		if pe.Name() == name {
			return pe
		}
	}

	return nil
}

func (m *Monitor) stageStats(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	m.lock.Lock()
	pe := m.findStage(name)
	m.lock.Unlock()

	if pe == nil {
		http.Error(w, "Stage not found", http.StatusNotFound)
		return
	}

	var stats stage.Statistics

	m.inspect(func() {
		stats = pe.Stats()
	})

	writeJSON(w, stats)
}

type bufferRsp struct {
	Buffer string `json:"buffer"`
	Level  int    `json:"level"`
	Cap    int    `json:"cap"`
	Peak   int    `json:"peak"`
}

func (m *Monitor) listBuffers(w http.ResponseWriter, r *http.Request) {
	sortMethod, limit, offset, err := buffersParseParams(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	m.lock.Lock()
	buffers := slices.Clone(m.buffers)
	m.lock.Unlock()

	var rsp []bufferRsp

	m.inspect(func() {
		selected := sortAndSelectBuffers(buffers, sortMethod, limit, offset)

		rsp = make([]bufferRsp, 0, len(selected))
		for _, b := range selected {
			rsp = append(rsp, bufferRsp{
				Buffer: b.Name(),
				Level:  b.Size(),
				Cap:    b.Capacity(),
				Peak:   b.MaxLevel(),
			})
		}
	})

	writeJSON(w, rsp)
}

func buffersParseParams(r *http.Request) (sortMethod string, limit, offset int, err error) {
	sortMethod = r.URL.Query().Get("sort")
	if sortMethod == "" {
		sortMethod = "level"
	}

	if sortMethod != "level" && sortMethod != "name" {
		return "", 0, 0, fmt.Errorf(
			"invalid sort method: %s. Allowed values are `level` and `name`",
			sortMethod)
	}

	limit, err = intParam(r, "limit")
	if err != nil {
		return sortMethod, 0, 0, err
	}

	offset, err = intParam(r, "offset")
	if err != nil {
		return sortMethod, limit, 0, err
	}

	return sortMethod, limit, offset, nil
}

func intParam(r *http.Request, key string) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}

	return n, nil
}

// sortAndSelectBuffers sorts by level, fullest first, or by name. A zero
// limit selects everything after offset.
func sortAndSelectBuffers(
	buffers []*buffer.FIFO,
	sortMethod string,
	limit, offset int,
) []*buffer.FIFO {
	sorted := make([]*buffer.FIFO, len(buffers))
	copy(sorted, buffers)

	if sortMethod == "name" {
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Name() < sorted[j].Name()
		})
	} else {
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Size() > sorted[j].Size()
		})
	}

	if offset > len(sorted) {
		offset = len(sorted)
	}

	end := len(sorted)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	return sorted[offset:end]
}

func (m *Monitor) listTaps(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	defer m.lock.Unlock()

	names := make([]string, 0, len(m.taps))
	for _, t := range m.taps {
		names = append(names, t.Name())
	}

	writeJSON(w, names)
}

func (m *Monitor) tapChanges(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	m.lock.Lock()
	var tap *stream.Tap
	for _, t := range m.taps {
		if t.Name() == name {
			tap = t
			break
		}
	}
	m.lock.Unlock()

	if tap == nil {
		http.Error(w, "Tap not found", http.StatusNotFound)
		return
	}

	changes := []stream.Change{}

	m.inspect(func() {
		changes = append(changes, tap.Changes()...)
	})

	writeJSON(w, changes)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, r *http.Request) {
	duration := DefaultProfileDuration

	if ms, err := intParam(r, "ms"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	} else if ms > 0 {
		duration = time.Duration(ms) * time.Millisecond
	}

	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(duration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
