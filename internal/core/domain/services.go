package domain

// =============================================================================
// Service Catalog
// =============================================================================

// Service names of the fixed honeypot stack.
const (
	ServiceElasticsearch = "elasticsearch"
	ServiceLogstash      = "logstash"
	ServiceKibana        = "kibana"
	ServiceFilebeat      = "filebeat"
	ServiceCowrie        = "cowrie"
)

// Pinned images for the stack.
const (
	ImageElasticsearch = "docker.elastic.co/elasticsearch/elasticsearch:8.11.0"
	ImageLogstash      = "docker.elastic.co/logstash/logstash:8.11.0"
	ImageKibana        = "docker.elastic.co/kibana/kibana:8.11.0"
	ImageFilebeat      = "docker.elastic.co/beats/filebeat:8.11.0"
	ImageCowrie        = "cowrie/cowrie:latest"
)

// ServiceNames lists every service of a deployment in declaration order.
// Start order is derived from ServiceDependencies, not from this slice.
func ServiceNames() []string {
	return []string{
		ServiceElasticsearch,
		ServiceLogstash,
		ServiceKibana,
		ServiceFilebeat,
		ServiceCowrie,
	}
}

// ServiceImage returns the pinned image for a service name.
func ServiceImage(service string) string {
	switch service {
	case ServiceElasticsearch:
		return ImageElasticsearch
	case ServiceLogstash:
		return ImageLogstash
	case ServiceKibana:
		return ImageKibana
	case ServiceFilebeat:
		return ImageFilebeat
	case ServiceCowrie:
		return ImageCowrie
	default:
		return ""
	}
}

// ServiceDependencies maps each service to the services it must start after.
func ServiceDependencies() map[string][]string {
	return map[string][]string{
		ServiceElasticsearch: {},
		ServiceLogstash:      {ServiceElasticsearch},
		ServiceKibana:        {ServiceElasticsearch},
		ServiceFilebeat:      {ServiceLogstash},
		ServiceCowrie:        {ServiceFilebeat},
	}
}
