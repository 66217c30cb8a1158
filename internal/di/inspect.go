package di

import (
	"reflect"

	jsoniter "github.com/json-iterator/go"

	"github.com/xraph/conductor/internal/metadata"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ServiceInfo describes one registration.
type ServiceInfo struct {
	Name         string   `json:"name"`
	Token        string   `json:"token"`
	Kind         string   `json:"kind"`
	Lifecycle    string   `json:"lifecycle"`
	Type         string   `json:"type"`
	Dependencies []string `json:"dependencies,omitempty"`
	Instantiated bool     `json:"instantiated"`
	Telemetry    []string `json:"telemetry,omitempty"`
	Publishes    []string `json:"publishes,omitempty"`
	Schedules    []string `json:"schedules,omitempty"`
}

// JobInfo describes one live scheduled job.
type JobInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Spec string `json:"spec"`
	Runs int64  `json:"runs"`
}

// Snapshot is a point-in-time view of the registry.
type Snapshot struct {
	Services []ServiceInfo `json:"services"`
	Jobs     []JobInfo     `json:"jobs"`
}

// Inspect returns information about the service registered for token. Only
// Name is set when nothing is registered.
func (r *Registry) Inspect(token any) ServiceInfo {
	k, err := keyOf(token)
	if err != nil {
		return ServiceInfo{}
	}
	def, ok := r.lookup(k)
	if !ok {
		return ServiceInfo{Name: k.String()}
	}
	return r.describe(def)
}

// Services describes every registration in registration order.
func (r *Registry) Services() []ServiceInfo {
	defs := r.definitions()
	out := make([]ServiceInfo, 0, len(defs))
	for _, def := range defs {
		out = append(out, r.describe(def))
	}
	return out
}

func (r *Registry) describe(def *definition) ServiceInfo {
	_, cached := def.cachedInstance()
	info := ServiceInfo{
		Name:         def.name,
		Token:        tokenString(def.token),
		Kind:         def.kind,
		Lifecycle:    def.lifecycle(),
		Type:         def.produces.String(),
		Instantiated: cached,
	}

	for _, dep := range def.dependencies(r.store) {
		info.Dependencies = append(info.Dependencies, tokenString(dep))
	}
	if def.isFactory() {
		return info
	}

	info.Telemetry = metadata.SortedKeys(metadata.Telemetry(r.store, def.produces))
	publishers := metadata.Publishers(r.store, def.produces)
	for _, method := range metadata.SortedKeys(publishers) {
		info.Publishes = append(info.Publishes, method+" -> "+publishers[method].Event)
	}
	schedules := metadata.Schedules(r.store, def.produces)
	for _, method := range metadata.SortedKeys(schedules) {
		info.Schedules = append(info.Schedules, method+" @ "+schedules[method].String())
	}
	return info
}

// Snapshot renders every registration and live job as JSON.
func (r *Registry) Snapshot() ([]byte, error) {
	snap := Snapshot{
		Services: r.Services(),
		Jobs:     []JobInfo{},
	}
	for _, job := range r.Jobs() {
		snap.Jobs = append(snap.Jobs, JobInfo{
			ID:   job.ID,
			Name: job.Name,
			Spec: job.Spec,
			Runs: job.Runs(),
		})
	}
	return json.Marshal(snap)
}

func tokenString(token any) string {
	switch t := token.(type) {
	case string:
		return t
	case reflect.Type:
		return t.String()
	}
	if k, err := keyOf(token); err == nil {
		return k.String()
	}
	return reflect.TypeOf(token).String()
}
