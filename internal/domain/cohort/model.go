package cohort

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ehr/ehrcore/internal/platform/apperr"
	"github.com/ehr/ehrcore/internal/platform/fhir"
)

// Message keys reported in validation errors.
const (
	KeyNameRequired        = "Cohort.save.nameRequired"
	KeyDescriptionRequired = "Cohort.save.descriptionRequired"
	KeyVoidReasonEmpty     = "general.voidReason.empty"
)

const (
	identifierSystem   = "urn:ehrcore:cohort"
	descriptionExtURL  = "urn:ehrcore:cohort-description"
	voidReasonExtURL   = "urn:ehrcore:cohort-void-reason"
	memberResourceType = "Patient"
)

// MemberSet is a set of subject ids. It marshals as a sorted JSON array.
type MemberSet map[int]struct{}

func NewMemberSet(ids ...int) MemberSet {
	s := make(MemberSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s MemberSet) Contains(id int) bool {
	_, ok := s[id]
	return ok
}

func (s MemberSet) Len() int { return len(s) }

// Sorted returns the member ids in ascending order.
func (s MemberSet) Sorted() []int {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (s MemberSet) Clone() MemberSet {
	out := make(MemberSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

func (s MemberSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *MemberSet) UnmarshalJSON(data []byte) error {
	var ids []int
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewMemberSet(ids...)
	return nil
}

// Cohort is a named, described set of subjects. Voiding marks it inactive
// without deleting it.
type Cohort struct {
	ID          *int       `json:"id,omitempty"`
	UUID        string     `json:"uuid,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Members     MemberSet  `json:"members"`
	Voided      bool       `json:"voided"`
	VoidedBy    *string    `json:"voided_by,omitempty"`
	DateVoided  *time.Time `json:"date_voided,omitempty"`
	VoidReason  *string    `json:"void_reason,omitempty"`
	Creator     string     `json:"creator,omitempty"`
	DateCreated time.Time  `json:"date_created"`
	ChangedBy   *string    `json:"changed_by,omitempty"`
	DateChanged *time.Time `json:"date_changed,omitempty"`
}

// New returns a transient cohort with the given members.
func New(name, description string, members ...int) *Cohort {
	return &Cohort{Name: name, Description: description, Members: NewMemberSet(members...)}
}

func (c *Cohort) IsNew() bool { return c.ID == nil }

func (c *Cohort) GlobalID() string { return c.UUID }

func (c *Cohort) StampCreated(by string, at time.Time) {
	if c.Creator == "" {
		c.Creator = by
	}
	if c.DateCreated.IsZero() {
		c.DateCreated = at
	}
}

func (c *Cohort) StampChanged(by string, at time.Time) {
	c.ChangedBy = &by
	c.DateChanged = &at
}

func (c *Cohort) SnapshotAudit() func() {
	creator, created := c.Creator, c.DateCreated
	changedBy, changed := cloneString(c.ChangedBy), cloneTime(c.DateChanged)
	return func() {
		c.Creator, c.DateCreated = creator, created
		c.ChangedBy, c.DateChanged = changedBy, changed
	}
}

// Contains reports whether subjectID is a member.
func (c *Cohort) Contains(subjectID int) bool {
	return c.Members.Contains(subjectID)
}

// addMember returns false when subjectID was already present.
func (c *Cohort) addMember(subjectID int) bool {
	if c.Members == nil {
		c.Members = MemberSet{}
	}
	if c.Members.Contains(subjectID) {
		return false
	}
	c.Members[subjectID] = struct{}{}
	return true
}

// removeMember returns false when subjectID was not present.
func (c *Cohort) removeMember(subjectID int) bool {
	if !c.Members.Contains(subjectID) {
		return false
	}
	delete(c.Members, subjectID)
	return true
}

// Clone returns a deep copy; repositories hand out clones so callers never
// share state with storage.
func (c *Cohort) Clone() *Cohort {
	out := *c
	out.ID = cloneInt(c.ID)
	out.Members = c.Members.Clone()
	out.VoidedBy = cloneString(c.VoidedBy)
	out.DateVoided = cloneTime(c.DateVoided)
	out.VoidReason = cloneString(c.VoidReason)
	out.ChangedBy = cloneString(c.ChangedBy)
	out.DateChanged = cloneTime(c.DateChanged)
	return &out
}

// voidState captures the void fields so a failed void or unvoid can be undone.
type voidState struct {
	voided     bool
	voidedBy   *string
	dateVoided *time.Time
	voidReason *string
}

func (c *Cohort) voidState() voidState {
	return voidState{c.Voided, c.VoidedBy, c.DateVoided, c.VoidReason}
}

func (c *Cohort) restoreVoidState(s voidState) {
	c.Voided, c.VoidedBy, c.DateVoided, c.VoidReason = s.voided, s.voidedBy, s.dateVoided, s.voidReason
}

// Validate checks mandatory fields in declared order: name, description,
// then the void reason of a voided cohort.
func Validate(c *Cohort) error {
	if strings.TrimSpace(c.Name) == "" {
		return apperr.Required("name", KeyNameRequired)
	}
	if strings.TrimSpace(c.Description) == "" {
		return apperr.Required("description", KeyDescriptionRequired)
	}
	if c.Voided && (c.VoidReason == nil || strings.TrimSpace(*c.VoidReason) == "") {
		return apperr.Required("voidReason", KeyVoidReasonEmpty)
	}
	return nil
}

// ToFHIR renders the cohort as a FHIR R4 Group resource map.
func (c *Cohort) ToFHIR() map[string]interface{} {
	lastUpdated := c.DateCreated
	if c.DateChanged != nil {
		lastUpdated = *c.DateChanged
	}

	result := map[string]interface{}{
		"resourceType": "Group",
		"id":           c.UUID,
		"type":         "person",
		"actual":       true,
		"active":       !c.Voided,
		"name":         c.Name,
		"quantity":     c.Members.Len(),
		"meta":         fhir.Meta{LastUpdated: lastUpdated},
	}

	if c.ID != nil {
		result["identifier"] = []fhir.Identifier{{
			Use:    "official",
			System: identifierSystem,
			Value:  strconv.Itoa(*c.ID),
		}}
	}

	extensions := []fhir.Extension{{URL: descriptionExtURL, ValueString: c.Description}}
	if c.Voided && c.VoidReason != nil {
		extensions = append(extensions, fhir.Extension{URL: voidReasonExtURL, ValueString: *c.VoidReason})
	}
	result["extension"] = extensions

	if c.Members.Len() > 0 {
		members := make([]map[string]interface{}, 0, c.Members.Len())
		for _, id := range c.Members.Sorted() {
			members = append(members, map[string]interface{}{
				"entity": fhir.Reference{
					Reference: fhir.FormatReference(memberResourceType, strconv.Itoa(id)),
				},
			})
		}
		result["member"] = members
	}

	return result
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
