package spec

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Endpoints is the partition/endpoint table shared by all services.
type Endpoints struct {
	Partitions []Partition `yaml:"partitions"`
}

// Partition groups regions that share a DNS suffix.
type Partition struct {
	Partition string                     `yaml:"partition"`
	DNSSuffix string                     `yaml:"dnsSuffix"`
	Services  map[string]ServiceEndpoint `yaml:"services"`
}

// ServiceEndpoint is the endpoint configuration of one service within a
// partition.
type ServiceEndpoint struct {
	PartitionEndpoint string `yaml:"partitionEndpoint"`
	IsRegionalized    *bool  `yaml:"isRegionalized"`
	Endpoints         map[string]struct {
		Hostname string `yaml:"hostname"`
	} `yaml:"endpoints"`
}

// ParseEndpoints decodes an endpoint table.
func ParseEndpoints(data []byte) (*Endpoints, error) {
	var e Endpoints
	if err := yaml.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("parse endpoints: %w", err)
	}
	return &e, nil
}

// ForService returns the region-to-hostname overrides declared for the
// endpoint prefix across all partitions, and the partition endpoint of the
// first partition that declares the service.
func (e *Endpoints) ForService(endpointPrefix string) (map[string]string, string) {
	if e == nil {
		return nil, ""
	}
	var (
		overrides map[string]string
		partition string
	)
	for _, p := range e.Partitions {
		svc, ok := p.Services[endpointPrefix]
		if !ok {
			continue
		}
		if partition == "" {
			partition = svc.PartitionEndpoint
		}
		for region, ep := range svc.Endpoints {
			if ep.Hostname == "" {
				continue
			}
			if overrides == nil {
				overrides = make(map[string]string)
			}
			overrides[region] = ep.Hostname
		}
	}
	return overrides, partition
}
