package compose

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/honeymesh/internal/core/domain"
)

func manifestDeployment(t *testing.T, name string) *domain.Deployment {
	t.Helper()
	d, err := domain.NewDeployment(name, domain.ModeDefault, "svr04", domain.DefaultPorts(), "/data")
	require.NoError(t, err)
	return d
}

// =============================================================================
// GenerateManifest Tests
// =============================================================================

func TestGenerateManifest_Deterministic(t *testing.T) {
	d := manifestDeployment(t, "hc1")

	first, err := GenerateManifest(d)
	require.NoError(t, err)

	second, err := GenerateManifest(d)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestGenerateManifest_DeterministicAcrossRecords(t *testing.T) {
	// Two deployments built from the same inputs must render identically:
	// the manifest is a function of the record, not of generation time.
	a := manifestDeployment(t, "hc1")
	b := manifestDeployment(t, "hc1")

	ma, err := GenerateManifest(a)
	require.NoError(t, err)
	mb, err := GenerateManifest(b)
	require.NoError(t, err)

	assert.Equal(t, ma, mb)
}

func TestGenerateManifest_ParsesBack(t *testing.T) {
	d := manifestDeployment(t, "hc1")

	manifest, err := GenerateManifest(d)
	require.NoError(t, err)

	spec, err := ParseManifest(manifest)
	require.NoError(t, err)

	assert.Len(t, spec.Services, 5)
	require.Len(t, spec.Networks, 1)
	assert.Equal(t, "honeymesh-hc1", spec.Networks[0].Name)
}

func TestGenerateManifest_ContainerNames(t *testing.T) {
	d := manifestDeployment(t, "hc1")

	manifest, err := GenerateManifest(d)
	require.NoError(t, err)

	spec, err := ParseManifest(manifest)
	require.NoError(t, err)

	for _, svc := range spec.Services {
		assert.Equal(t, domain.ContainerName("hc1", svc.Name), svc.ContainerName)
	}
}

func TestGenerateManifest_Labels(t *testing.T) {
	d := manifestDeployment(t, "hc1")

	manifest, err := GenerateManifest(d)
	require.NoError(t, err)

	spec, err := ParseManifest(manifest)
	require.NoError(t, err)

	for _, svc := range spec.Services {
		assert.Equal(t, "true", svc.Labels[LabelManaged], svc.Name)
		assert.Equal(t, "hc1", svc.Labels[LabelDeployment], svc.Name)
		assert.Equal(t, svc.Name, svc.Labels[LabelService], svc.Name)
	}
}

func TestGenerateManifest_StartOrder(t *testing.T) {
	d := manifestDeployment(t, "hc1")

	manifest, err := GenerateManifest(d)
	require.NoError(t, err)

	spec, err := ParseManifest(manifest)
	require.NoError(t, err)

	deps := make(map[string][]string)
	for _, svc := range spec.Services {
		deps[svc.Name] = svc.DependsOn
	}

	assert.Empty(t, deps[domain.ServiceElasticsearch])
	assert.Equal(t, []string{domain.ServiceElasticsearch}, deps[domain.ServiceLogstash])
	assert.Equal(t, []string{domain.ServiceElasticsearch}, deps[domain.ServiceKibana])
	assert.Equal(t, []string{domain.ServiceLogstash}, deps[domain.ServiceFilebeat])
	assert.Equal(t, []string{domain.ServiceFilebeat}, deps[domain.ServiceCowrie])
}

func TestGenerateManifest_PortBindings(t *testing.T) {
	ports := domain.DefaultPorts()
	ports.SSH = 3322
	ports.Kibana = 6601
	d, err := domain.NewDeployment("hc1", domain.ModeDefault, "svr04", ports, "/data")
	require.NoError(t, err)

	manifest, err := GenerateManifest(d)
	require.NoError(t, err)

	assert.Contains(t, manifest, "3322:2222")
	assert.Contains(t, manifest, "6601:5601")
	assert.Contains(t, manifest, "9200:9200")
	assert.Contains(t, manifest, "5044:5044")
}

func TestGenerateManifest_TelnetDisabledByDefault(t *testing.T) {
	d := manifestDeployment(t, "hc1")

	manifest, err := GenerateManifest(d)
	require.NoError(t, err)

	spec, err := ParseManifest(manifest)
	require.NoError(t, err)

	cowrie := findService(t, spec, domain.ServiceCowrie)
	assert.Equal(t, "no", cowrie.Environment["COWRIE_TELNET_ENABLED"])
	assert.Len(t, cowrie.Ports, 1)
}

func TestGenerateManifest_TelnetEnabled(t *testing.T) {
	ports := domain.DefaultPorts()
	ports.Telnet = 2323
	d, err := domain.NewDeployment("hc1", domain.ModeDefault, "svr04", ports, "/data")
	require.NoError(t, err)

	manifest, err := GenerateManifest(d)
	require.NoError(t, err)

	spec, err := ParseManifest(manifest)
	require.NoError(t, err)

	cowrie := findService(t, spec, domain.ServiceCowrie)
	assert.Equal(t, "yes", cowrie.Environment["COWRIE_TELNET_ENABLED"])
	assert.Len(t, cowrie.Ports, 2)
	assert.Contains(t, manifest, "2323:2223")
}

func TestGenerateManifest_BindMountsUnderRoot(t *testing.T) {
	d := manifestDeployment(t, "hc1")

	manifest, err := GenerateManifest(d)
	require.NoError(t, err)

	spec, err := ParseManifest(manifest)
	require.NoError(t, err)

	for _, svc := range spec.Services {
		for _, vol := range svc.Volumes {
			assert.True(t, strings.HasPrefix(vol.Source, d.Paths.Root),
				"%s mounts %s outside the deployment root", svc.Name, vol.Source)
		}
	}
}

func TestGenerateManifest_CowrieHostname(t *testing.T) {
	d, err := domain.NewDeployment("hc1", domain.ModeMedium, "mail-gw02", domain.DefaultPorts(), "/data")
	require.NoError(t, err)

	manifest, err := GenerateManifest(d)
	require.NoError(t, err)

	spec, err := ParseManifest(manifest)
	require.NoError(t, err)

	cowrie := findService(t, spec, domain.ServiceCowrie)
	assert.Equal(t, "mail-gw02", cowrie.Hostname)
}

func TestGenerateManifest_NilDeployment(t *testing.T) {
	_, err := GenerateManifest(nil)
	require.Error(t, err)
}

func TestGenerateManifest_InvalidPorts(t *testing.T) {
	d := manifestDeployment(t, "hc1")
	d.Ports.SSH = d.Ports.Kibana // duplicate

	_, err := GenerateManifest(d)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPortDuplicated)
}
