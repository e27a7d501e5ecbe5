package deployment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/artpar/honeymesh/internal/core/compose"
)

// =============================================================================
// StartOrder Tests
// =============================================================================

func indexByName(services []compose.Service) map[string]int {
	indices := make(map[string]int, len(services))
	for i, s := range services {
		indices[s.Name] = i
	}
	return indices
}

func TestStartOrder_Empty(t *testing.T) {
	assert.Empty(t, StartOrder([]compose.Service{}))
}

func TestStartOrder_SingleService(t *testing.T) {
	result := StartOrder([]compose.Service{{Name: "cowrie"}})

	assert.Len(t, result, 1)
	assert.Equal(t, "cowrie", result[0].Name)
}

func TestStartOrder_NoDependenciesKeepsInputOrder(t *testing.T) {
	services := []compose.Service{
		{Name: "elasticsearch"},
		{Name: "kibana"},
		{Name: "cowrie"},
	}

	result := StartOrder(services)

	assert.Len(t, result, 3)
	assert.Equal(t, "elasticsearch", result[0].Name)
	assert.Equal(t, "kibana", result[1].Name)
	assert.Equal(t, "cowrie", result[2].Name)
}

func TestStartOrder_LogPipelineChain(t *testing.T) {
	services := []compose.Service{
		{Name: "cowrie", DependsOn: []string{"filebeat"}},
		{Name: "filebeat", DependsOn: []string{"logstash"}},
		{Name: "logstash", DependsOn: []string{"elasticsearch"}},
		{Name: "elasticsearch"},
	}

	result := StartOrder(services)

	assert.Equal(t, []string{"elasticsearch", "logstash", "filebeat", "cowrie"},
		[]string{result[0].Name, result[1].Name, result[2].Name, result[3].Name})
}

func TestStartOrder_FullStack(t *testing.T) {
	// The generated manifest's shape: logstash and kibana both wait on
	// elasticsearch, filebeat on logstash, cowrie on filebeat.
	services := []compose.Service{
		{Name: "cowrie", DependsOn: []string{"filebeat"}},
		{Name: "filebeat", DependsOn: []string{"logstash"}},
		{Name: "kibana", DependsOn: []string{"elasticsearch"}},
		{Name: "logstash", DependsOn: []string{"elasticsearch"}},
		{Name: "elasticsearch"},
	}

	result := StartOrder(services)
	indices := indexByName(result)

	assert.Len(t, result, 5)
	assert.Equal(t, 0, indices["elasticsearch"])
	assert.Less(t, indices["elasticsearch"], indices["logstash"])
	assert.Less(t, indices["elasticsearch"], indices["kibana"])
	assert.Less(t, indices["logstash"], indices["filebeat"])
	assert.Less(t, indices["filebeat"], indices["cowrie"])
}

func TestStartOrder_SharedDependencyTiesBreakInInputOrder(t *testing.T) {
	services := []compose.Service{
		{Name: "kibana", DependsOn: []string{"elasticsearch"}},
		{Name: "logstash", DependsOn: []string{"elasticsearch"}},
		{Name: "elasticsearch"},
	}

	result := StartOrder(services)

	assert.Equal(t, "elasticsearch", result[0].Name)
	assert.Equal(t, "kibana", result[1].Name)
	assert.Equal(t, "logstash", result[2].Name)
}

func TestStartOrder_Deterministic(t *testing.T) {
	services := []compose.Service{
		{Name: "cowrie", DependsOn: []string{"filebeat"}},
		{Name: "filebeat", DependsOn: []string{"logstash"}},
		{Name: "kibana", DependsOn: []string{"elasticsearch"}},
		{Name: "logstash", DependsOn: []string{"elasticsearch"}},
		{Name: "elasticsearch"},
	}

	first := StartOrder(services)
	second := StartOrder(services)

	assert.Equal(t, first, second)
}

func TestStartOrder_CycleFallback(t *testing.T) {
	// Cycles are rejected at parse time; one that survives must not drop
	// services from the start plan.
	services := []compose.Service{
		{Name: "logstash", DependsOn: []string{"filebeat"}},
		{Name: "filebeat", DependsOn: []string{"logstash"}},
	}

	result := StartOrder(services)

	assert.Len(t, result, 2)
	assert.Equal(t, "logstash", result[0].Name)
	assert.Equal(t, "filebeat", result[1].Name)
}

func TestStartOrder_PartialCycle(t *testing.T) {
	services := []compose.Service{
		{Name: "logstash", DependsOn: []string{"filebeat"}},
		{Name: "filebeat", DependsOn: []string{"logstash"}},
		{Name: "elasticsearch"},
	}

	result := StartOrder(services)

	assert.Len(t, result, 3)
	assert.Equal(t, "elasticsearch", result[0].Name)
}

func TestStartOrder_UnknownDependencyTreatedSatisfied(t *testing.T) {
	// A dependency naming a service outside the manifest must not wedge
	// the plan.
	services := []compose.Service{
		{Name: "cowrie", DependsOn: []string{"filebeat"}},
	}

	result := StartOrder(services)

	assert.Len(t, result, 1)
	assert.Equal(t, "cowrie", result[0].Name)
}

func TestStartOrder_PreservesServiceData(t *testing.T) {
	services := []compose.Service{
		{
			Name:        "cowrie",
			Image:       "cowrie/cowrie:latest",
			DependsOn:   []string{"filebeat"},
			Environment: map[string]string{"COWRIE_TELNET_ENABLED": "no"},
		},
		{
			Name:  "filebeat",
			Image: "docker.elastic.co/beats/filebeat:8.11.0",
		},
	}

	result := StartOrder(services)

	assert.Equal(t, "filebeat", result[0].Name)
	cowrie := result[1]
	assert.Equal(t, "cowrie/cowrie:latest", cowrie.Image)
	assert.Equal(t, []string{"filebeat"}, cowrie.DependsOn)
	assert.Equal(t, "no", cowrie.Environment["COWRIE_TELNET_ENABLED"])
}
