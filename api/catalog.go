package api

// Node is a catalog node.
type Node struct {
	ID              string            `json:"ID"`
	Node            string            `json:"Node"`
	Address         string            `json:"Address"`
	Datacenter      string            `json:"Datacenter"`
	TaggedAddresses map[string]string `json:"TaggedAddresses,omitempty"`
	Meta            map[string]string `json:"Meta,omitempty"`
	CreateIndex     uint64            `json:"CreateIndex"`
	ModifyIndex     uint64            `json:"ModifyIndex"`
}

// CatalogService is one service instance as listed by the catalog.
type CatalogService struct {
	ID                       string            `json:"ID"`
	Node                     string            `json:"Node"`
	Address                  string            `json:"Address"`
	Datacenter               string            `json:"Datacenter"`
	TaggedAddresses          map[string]string `json:"TaggedAddresses,omitempty"`
	NodeMeta                 map[string]string `json:"NodeMeta,omitempty"`
	ServiceID                string            `json:"ServiceID"`
	ServiceName              string            `json:"ServiceName"`
	ServiceAddress           string            `json:"ServiceAddress"`
	ServiceTags              []string          `json:"ServiceTags"`
	ServiceMeta              map[string]string `json:"ServiceMeta,omitempty"`
	ServicePort              int               `json:"ServicePort"`
	ServiceEnableTagOverride bool              `json:"ServiceEnableTagOverride"`
	CreateIndex              uint64            `json:"CreateIndex"`
	ModifyIndex              uint64            `json:"ModifyIndex"`
}

// CursorID identifies a service instance by node and service ID.
func (s CatalogService) CursorID() string { return s.Node + "/" + s.ServiceID }

// AgentService is the service definition embedded in registrations and
// health results.
type AgentService struct {
	ID                string            `json:"ID"`
	Service           string            `json:"Service"`
	Tags              []string          `json:"Tags,omitempty"`
	Meta              map[string]string `json:"Meta,omitempty"`
	Port              int               `json:"Port"`
	Address           string            `json:"Address"`
	EnableTagOverride bool              `json:"EnableTagOverride"`
	Namespace         string            `json:"Namespace,omitempty"`
	Partition         string            `json:"Partition,omitempty"`
	CreateIndex       uint64            `json:"CreateIndex,omitempty"`
	ModifyIndex       uint64            `json:"ModifyIndex,omitempty"`
}

// CatalogRegistration registers a node, and optionally a service and a
// check, directly in the catalog.
type CatalogRegistration struct {
	ID              string            `json:"ID,omitempty"`
	Node            string            `json:"Node"`
	Address         string            `json:"Address"`
	TaggedAddresses map[string]string `json:"TaggedAddresses,omitempty"`
	NodeMeta        map[string]string `json:"NodeMeta,omitempty"`
	Datacenter      string            `json:"Datacenter,omitempty"`
	Service         *AgentService     `json:"Service,omitempty"`
	Check           *AgentCheck       `json:"Check,omitempty"`
	SkipNodeUpdate  bool              `json:"SkipNodeUpdate,omitempty"`
}

// CatalogDeregistration removes a node, a service or a check. Setting only
// Node removes the node and everything on it.
type CatalogDeregistration struct {
	Node       string `json:"Node"`
	Address    string `json:"Address,omitempty"`
	Datacenter string `json:"Datacenter,omitempty"`
	ServiceID  string `json:"ServiceID,omitempty"`
	CheckID    string `json:"CheckID,omitempty"`
}

// AgentCheck is a check attached to a catalog registration.
type AgentCheck struct {
	Node        string `json:"Node,omitempty"`
	CheckID     string `json:"CheckID"`
	Name        string `json:"Name"`
	Status      string `json:"Status"`
	Notes       string `json:"Notes,omitempty"`
	Output      string `json:"Output,omitempty"`
	ServiceID   string `json:"ServiceID,omitempty"`
	ServiceName string `json:"ServiceName,omitempty"`
}
