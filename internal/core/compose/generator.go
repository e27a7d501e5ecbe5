package compose

import (
	"fmt"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/artpar/honeymesh/internal/core/domain"
)

// =============================================================================
// Manifest Constants
// =============================================================================

const (
	// ManifestFileName is where the generated manifest is written at the
	// root of a deployment's directory tree.
	ManifestFileName = "docker-compose.yml"

	// NetworkKey is the manifest-local key of the deployment network.
	NetworkKey = "honeymesh"

	// Container labels applied to every managed container.
	LabelManaged    = "com.honeymesh.managed"
	LabelDeployment = "com.honeymesh.deployment"
	LabelService    = "com.honeymesh.service"
)

// Container-side mount targets.
const (
	cowrieEtcTarget        = "/cowrie/cowrie-git/etc"
	cowrieHoneyfsTarget    = "/cowrie/cowrie-git/honeyfs"
	cowrieLogTarget        = "/cowrie/cowrie-git/var/log/cowrie"
	cowrieKeysTarget       = "/cowrie/cowrie-git/var/lib/cowrie/keys"
	cowrieDownloadsTarget  = "/cowrie/cowrie-git/var/lib/cowrie/downloads"
	logstashPipelineTarget = "/usr/share/logstash/pipeline"
	filebeatConfigTarget   = "/usr/share/filebeat/filebeat.yml"
	filebeatLogTarget      = "/var/log/cowrie"
)

// =============================================================================
// Manifest Document Types
// =============================================================================

// The manifest is marshalled from fixed-field structs so that the same
// deployment record always yields byte-identical output. Field order is the
// struct order; map values (environment, labels) are sorted by yaml.v3.

type manifestDoc struct {
	Services manifestServices           `yaml:"services"`
	Networks map[string]manifestNetwork `yaml:"networks"`
}

type manifestServices struct {
	Elasticsearch manifestService `yaml:"elasticsearch"`
	Logstash      manifestService `yaml:"logstash"`
	Kibana        manifestService `yaml:"kibana"`
	Filebeat      manifestService `yaml:"filebeat"`
	Cowrie        manifestService `yaml:"cowrie"`
}

type manifestService struct {
	Image         string            `yaml:"image"`
	ContainerName string            `yaml:"container_name"`
	Hostname      string            `yaml:"hostname,omitempty"`
	Restart       string            `yaml:"restart"`
	DependsOn     []string          `yaml:"depends_on,omitempty"`
	Environment   map[string]string `yaml:"environment,omitempty"`
	Command       []string          `yaml:"command,omitempty,flow"`
	Ports         []string          `yaml:"ports,omitempty"`
	Volumes       []string          `yaml:"volumes,omitempty"`
	Networks      []string          `yaml:"networks"`
	Labels        map[string]string `yaml:"labels"`
}

type manifestNetwork struct {
	Name   string `yaml:"name"`
	Driver string `yaml:"driver"`
}

// =============================================================================
// Generator
// =============================================================================

// GenerateManifest renders the Compose manifest for a deployment.
// The output is a pure function of the deployment record: name, hostname,
// ports, and paths fully determine every byte, so the manifest can be
// regenerated at any time without consulting the old file.
//
// Example:
//
//	first, _ := GenerateManifest(d)
//	second, _ := GenerateManifest(d)
//	// first == second
func GenerateManifest(d *domain.Deployment) (string, error) {
	if d == nil || d.Name == "" {
		return "", fmt.Errorf("generate manifest: %w", domain.ErrDeploymentNameEmpty)
	}
	if err := d.Ports.Validate(); err != nil {
		return "", fmt.Errorf("generate manifest: %w", err)
	}

	doc := manifestDoc{
		Services: manifestServices{
			Elasticsearch: elasticsearchService(d),
			Logstash:      logstashService(d),
			Kibana:        kibanaService(d),
			Filebeat:      filebeatService(d),
			Cowrie:        cowrieService(d),
		},
		Networks: map[string]manifestNetwork{
			NetworkKey: {
				Name:   domain.NetworkName(d.Name),
				Driver: "bridge",
			},
		},
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return "", fmt.Errorf("generate manifest: %w", err)
	}
	return string(out), nil
}

func elasticsearchService(d *domain.Deployment) manifestService {
	return manifestService{
		Image:         domain.ServiceImage(domain.ServiceElasticsearch),
		ContainerName: domain.ContainerName(d.Name, domain.ServiceElasticsearch),
		Restart:       string(RestartUnlessStopped),
		DependsOn:     domain.ServiceDependencies()[domain.ServiceElasticsearch],
		Environment: map[string]string{
			"discovery.type":         "single-node",
			"xpack.security.enabled": "false",
			"ES_JAVA_OPTS":           "-Xms512m -Xmx512m",
		},
		Ports:    []string{hostBinding(d.Ports.Elasticsearch, 9200)},
		Networks: []string{NetworkKey},
		Labels:   serviceLabels(d.Name, domain.ServiceElasticsearch),
	}
}

func logstashService(d *domain.Deployment) manifestService {
	return manifestService{
		Image:         domain.ServiceImage(domain.ServiceLogstash),
		ContainerName: domain.ContainerName(d.Name, domain.ServiceLogstash),
		Restart:       string(RestartUnlessStopped),
		DependsOn:     domain.ServiceDependencies()[domain.ServiceLogstash],
		Environment: map[string]string{
			"LS_JAVA_OPTS":             "-Xms256m -Xmx256m",
			"XPACK_MONITORING_ENABLED": "false",
		},
		Ports: []string{
			hostBinding(d.Ports.LogstashBeats, 5044),
			hostBinding(d.Ports.LogstashMon, 9600),
		},
		Volumes:  []string{readOnlyBind(filepath.Join(d.Paths.ELK, "logstash"), logstashPipelineTarget)},
		Networks: []string{NetworkKey},
		Labels:   serviceLabels(d.Name, domain.ServiceLogstash),
	}
}

func kibanaService(d *domain.Deployment) manifestService {
	return manifestService{
		Image:         domain.ServiceImage(domain.ServiceKibana),
		ContainerName: domain.ContainerName(d.Name, domain.ServiceKibana),
		Restart:       string(RestartUnlessStopped),
		DependsOn:     domain.ServiceDependencies()[domain.ServiceKibana],
		Environment: map[string]string{
			"ELASTICSEARCH_HOSTS": "http://elasticsearch:9200",
		},
		Ports:    []string{hostBinding(d.Ports.Kibana, 5601)},
		Networks: []string{NetworkKey},
		Labels:   serviceLabels(d.Name, domain.ServiceKibana),
	}
}

func filebeatService(d *domain.Deployment) manifestService {
	return manifestService{
		Image:         domain.ServiceImage(domain.ServiceFilebeat),
		ContainerName: domain.ContainerName(d.Name, domain.ServiceFilebeat),
		Restart:       string(RestartUnlessStopped),
		DependsOn:     domain.ServiceDependencies()[domain.ServiceFilebeat],
		Command:       []string{"-e", "--strict.perms=false"},
		Volumes: []string{
			readOnlyBind(filepath.Join(d.Paths.ELK, "filebeat", "filebeat.yml"), filebeatConfigTarget),
			readOnlyBind(d.Paths.Log, filebeatLogTarget),
		},
		Networks: []string{NetworkKey},
		Labels:   serviceLabels(d.Name, domain.ServiceFilebeat),
	}
}

func cowrieService(d *domain.Deployment) manifestService {
	telnetEnabled := "no"
	ports := []string{hostBinding(d.Ports.SSH, 2222)}
	if d.Ports.Telnet != 0 {
		telnetEnabled = "yes"
		ports = append(ports, hostBinding(d.Ports.Telnet, 2223))
	}

	return manifestService{
		Image:         domain.ServiceImage(domain.ServiceCowrie),
		ContainerName: domain.ContainerName(d.Name, domain.ServiceCowrie),
		Hostname:      d.Hostname,
		Restart:       string(RestartUnlessStopped),
		DependsOn:     domain.ServiceDependencies()[domain.ServiceCowrie],
		Environment: map[string]string{
			"COWRIE_TELNET_ENABLED": telnetEnabled,
		},
		Ports: ports,
		Volumes: []string{
			bind(d.Paths.Config, cowrieEtcTarget),
			bind(d.Paths.Honeyfs, cowrieHoneyfsTarget),
			bind(d.Paths.Log, cowrieLogTarget),
			bind(d.Paths.Keys, cowrieKeysTarget),
			bind(d.Paths.Downloads, cowrieDownloadsTarget),
		},
		Networks: []string{NetworkKey},
		Labels:   serviceLabels(d.Name, domain.ServiceCowrie),
	}
}

func hostBinding(hostPort, containerPort int) string {
	return fmt.Sprintf("%d:%d", hostPort, containerPort)
}

func bind(source, target string) string {
	return source + ":" + target
}

func readOnlyBind(source, target string) string {
	return source + ":" + target + ":ro"
}

func serviceLabels(deploymentName, service string) map[string]string {
	return map[string]string{
		LabelManaged:    "true",
		LabelDeployment: deploymentName,
		LabelService:    service,
	}
}
