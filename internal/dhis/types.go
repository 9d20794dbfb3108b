package dhis

// Event is the payload for one program-stage event as the events API
// expects it.
type Event struct {
	Program    string      `json:"program"`
	OrgUnit    string      `json:"orgUnit"`
	EventDate  string      `json:"eventDate"`
	Status     string      `json:"status"`
	StoredBy   string      `json:"storedBy,omitempty"`
	DataValues []DataValue `json:"dataValues"`
}

// DataValue is one data element value inside an event.
type DataValue struct {
	DataElement string `json:"dataElement"`
	Value       string `json:"value"`
}

// SystemInfo is the subset of /system/info used for connectivity checks.
type SystemInfo struct {
	Version    string `json:"version"`
	Revision   string `json:"revision"`
	ServerDate string `json:"serverDate"`
	InstanceID string `json:"systemId"`
}

type eventList struct {
	Events []struct {
		Event string `json:"event"`
	} `json:"events"`
}

type importResponse struct {
	HTTPStatusCode int             `json:"httpStatusCode"`
	Message        string          `json:"message"`
	Response       *importSummarySet `json:"response"`
}

type importSummarySet struct {
	Status          string          `json:"status"`
	Imported        int             `json:"imported"`
	Ignored         int             `json:"ignored"`
	ImportSummaries []importSummary `json:"importSummaries"`
}

type importSummary struct {
	Status      string     `json:"status"`
	Description string     `json:"description"`
	Reference   string     `json:"reference"`
	Conflicts   []Conflict `json:"conflicts"`
}

// first returns the first per-event summary, if any.
func (s *importSummarySet) first() *importSummary {
	if s == nil || len(s.ImportSummaries) == 0 {
		return nil
	}
	return &s.ImportSummaries[0]
}
