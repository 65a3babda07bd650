package registry

// CriteriaMatcher is implemented by anything Criteria can filter,
// generalized from the teacher's criteria.go (which matched
// skynet.ServiceInfo) to match registry.Instance instead.
type CriteriaMatcher interface {
	Matches(i Instance) bool
}

// Criteria is a filter on instances: an instance matches when it
// satisfies every non-zero field.
type Criteria struct {
	Hosts      []string
	Regions    []string
	Services   []ServiceCriteria
	Registered *bool
}

// ServiceCriteria matches a (name, version) pair; a blank field
// matches anything.
type ServiceCriteria struct {
	Name    string
	Version string
}

func (sc ServiceCriteria) Matches(name, version string) bool {
	if sc.Name != "" && sc.Name != name {
		return false
	}
	if sc.Version != "" && sc.Version != version {
		return false
	}
	return true
}

func (c Criteria) Matches(i Instance) bool {
	if c.Registered != nil && i.Registered != *c.Registered {
		return false
	}
	if len(c.Hosts) > 0 && !exists(c.Hosts, i.IP) {
		return false
	}
	if len(c.Regions) > 0 && !exists(c.Regions, i.Region) {
		return false
	}
	if len(c.Services) > 0 {
		match := false
		for _, sc := range c.Services {
			if sc.Matches(i.Name, i.Version) {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	return true
}

func exists(haystack []string, needle string) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}
