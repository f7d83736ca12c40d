// Package monitoring serves a running simulation over HTTP so that it can be
// inspected and paused from a browser.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"reflect"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unsafe"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/msisim/monitoring/web"
	"github.com/sarchlab/msisim/platform"
	"github.com/sarchlab/msisim/sim"
)

// Monitor can turn a simulation into a server and allows external monitoring
// controlling of the simulation.
type Monitor struct {
	engine      sim.Engine
	platform    *platform.Platform
	components  []sim.Component
	buffers     []sim.Buffer
	portNumber  int
	openBrowser bool

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes StartServer open the monitoring page in a browser.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// RegisterEngine registers the engine that is used in the simulation.
func (m *Monitor) RegisterEngine(e sim.Engine) {
	m.engine = e
}

// RegisterPlatform registers the engine and all the components of a
// platform.
func (m *Monitor) RegisterPlatform(p *platform.Platform) {
	m.platform = p
	m.RegisterEngine(p.Engine)

	for _, c := range p.Components() {
		m.RegisterComponent(c)
	}
}

// RegisterComponent register a component to be monitored.
func (m *Monitor) RegisterComponent(c sim.Component) {
	m.components = append(m.components, c)

	m.registerBuffers(c)
}

func (m *Monitor) registerBuffers(c sim.Component) {
	m.registerComponentOrPortBuffers(c)

	for _, p := range c.Ports() {
		m.registerComponentOrPortBuffers(p)
	}
}

func (m *Monitor) registerComponentOrPortBuffers(c any) {
	v := reflect.ValueOf(c).Elem()
	bufferType := reflect.TypeOf((*sim.Buffer)(nil)).Elem()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if field.Type() != bufferType || field.IsNil() {
			continue
		}

		fieldRef := reflect.NewAt(
			field.Type(),
			unsafe.Pointer(field.UnsafeAddr()),
		).Elem().Interface().(sim.Buffer)
		m.buffers = append(m.buffers, fieldRef)
	}
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        sim.GetIDGenerator().Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Handler returns the routes of the monitor.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine)
	r.HandleFunc("/api/continue", m.continueEngine)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/cycle", m.cycle)
	r.HandleFunc("/api/stats", m.stats)
	r.HandleFunc("/api/list_components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/hangdetector/buffers", m.hangDetectorBuffers)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

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
		return "", errors.Wrap(err, "failed to start monitoring server")
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	handler := m.Handler()

	go func() {
		dieOnErr(http.Serve(listener, handler))
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open browser: %v\n", err)
		}
	}

	return url, nil
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Pause()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Continue()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	now := m.engine.CurrentTime()
	fmt.Fprintf(w, "{\"now\":%.10f}", now)
}

func (m *Monitor) cycle(w http.ResponseWriter, _ *http.Request) {
	if m.platform == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	fmt.Fprintf(w, "{\"cycle\":%d}", m.platform.Cycle())
}

func (m *Monitor) stats(w http.ResponseWriter, _ *http.Request) {
	if m.platform == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	bytes, err := json.Marshal(m.platform.Stats())
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(m.components))
	for _, c := range m.components {
		names = append(names, c.Name())
	}

	bytes, err := json.Marshal(names)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
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
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	jsonString := mux.Vars(r)["json"]
	req := fieldReq{}

	if err := json.Unmarshal([]byte(jsonString), &req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	component := m.findComponentOr404(w, req.CompName)
	if component == nil {
		return
	}

	if _, err := m.walkFields(component, req.FieldName); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)

	err := serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	dieOnErr(err)

	err = serializer.Serialize(w)
	dieOnErr(err)
}

type bufferLevel struct {
	Buffer string `json:"buffer"`
	Level  int    `json:"level"`
	Cap    int    `json:"cap"`
}

func (m *Monitor) hangDetectorBuffers(w http.ResponseWriter, r *http.Request) {
	sortMethod, limit, offset, err := m.buffersParseParams(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	sortedBuffers := m.sortAndSelectBuffers(sortMethod, limit, offset)

	levels := make([]bufferLevel, 0, len(sortedBuffers))
	for _, b := range sortedBuffers {
		levels = append(levels, bufferLevel{
			Buffer: b.Name(),
			Level:  b.Size(),
			Cap:    b.Capacity(),
		})
	}

	bytes, err := json.Marshal(levels)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (*Monitor) buffersParseParams(
	r *http.Request,
) (sortMethod string, limit, offset int, err error) {
	sortMethod = r.URL.Query().Get("sort")
	if sortMethod == "" {
		sortMethod = "percent"
	}

	if sortMethod != "level" && sortMethod != "percent" {
		return "", 0, 0, errors.Errorf(
			"invalid sort method %s, allowed values are `level` and `percent`",
			sortMethod)
	}

	limit, err = intParam(r, "limit")
	if err != nil {
		return "", 0, 0, err
	}

	offset, err = intParam(r, "offset")
	if err != nil {
		return "", 0, 0, err
	}

	return sortMethod, limit, offset, nil
}

func intParam(r *http.Request, name string) (int, error) {
	str := r.URL.Query().Get(name)
	if str == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(str)
	if err != nil || n < 0 {
		return 0, errors.Errorf("invalid %s %q", name, str)
	}

	return n, nil
}

func bufferPercent(b sim.Buffer) float64 {
	return float64(b.Size()) / float64(b.Capacity())
}

// sortAndSelectBuffers orders the buffers by level or fill ratio and returns
// the page starting at offset. A limit of 0 returns all the rest.
func (m *Monitor) sortAndSelectBuffers(
	sortMethod string,
	limit, offset int,
) []sim.Buffer {
	sortedBuffers := make([]sim.Buffer, len(m.buffers))
	copy(sortedBuffers, m.buffers)

	byLevel := func(i, j int) (bool, bool) {
		sizeI, sizeJ := sortedBuffers[i].Size(), sortedBuffers[j].Size()
		return sizeI > sizeJ, sizeI != sizeJ
	}

	byPercent := func(i, j int) (bool, bool) {
		pI := bufferPercent(sortedBuffers[i])
		pJ := bufferPercent(sortedBuffers[j])

		return pI > pJ, pI != pJ
	}

	first, second := byPercent, byLevel
	if sortMethod == "level" {
		first, second = byLevel, byPercent
	}

	sort.SliceStable(sortedBuffers, func(i, j int) bool {
		if less, decided := first(i, j); decided {
			return less
		}

		less, _ := second(i, j)

		return less
	})

	if offset > len(sortedBuffers) {
		offset = len(sortedBuffers)
	}

	end := len(sortedBuffers)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	return sortedBuffers[offset:end]
}

func (m *Monitor) walkFields(
	comp interface{},
	fields string,
) (reflect.Value, error) {
	elem := reflect.ValueOf(comp)

	fieldNames := strings.Split(fields, ".")

	for len(fieldNames) > 0 {
		switch elem.Kind() {
		case reflect.Ptr, reflect.Interface:
			elem = elem.Elem()
		case reflect.Struct:
			elem = elem.FieldByName(fieldNames[0])
			fieldNames = fieldNames[1:]
		case reflect.Slice:
			index, err := strconv.Atoi(fieldNames[0])
			if err != nil {
				return elem, errors.Errorf("field %s is not an index",
					fieldNames[0])
			}

			elem = elem.Index(index)
			fieldNames = fieldNames[1:]
		default:
			return elem, errors.Errorf("cannot find %s in a %s",
				fieldNames[0], elem.Kind())
		}
	}

	if !elem.IsValid() {
		return elem, errors.Errorf("no field %s", fields)
	}

	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}

	return elem, nil
}

func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	name string,
) sim.Component {
	for _, c := range m.components {
		if c.Name() == name {
			return c
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Component not found"))
	dieOnErr(err)

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bytes, err := json.Marshal(m.progressBars)
	m.progressBarsLock.Unlock()
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
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

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	bytes, err := json.Marshal(prof)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
