package database

// AuditedDate is one property created_at value as stored, for date audits.
type AuditedDate struct {
	ID  string
	Raw string
	Set bool // false when the stored value is NULL or empty
}

type LinkRepository interface {
	ListPending() ([]Link, error)
	GetByID(id string) (*Link, error)
	Insert(link Link) error
	MarkProcessing(id string) error
	MarkOutcome(id string, status ProcessingStatus, outcome LinkOutcome) error
	ResetAll() (int, error)
	Count() (int, error)
	CountPending() (int, error)
}

type CaptureRepository interface {
	Insert(capture RawCapture) error
	GetByID(id string) (*RawCapture, error)
	ExistsBySourceURL(sourceURL string) (bool, error)
	ListPending(limit int) ([]RawCapture, error)
	ListByStatus(status ProcessingStatus, limit int) ([]RawCapture, error)
	Transition(id string, from, to ProcessingStatus, update CaptureUpdate) (bool, error)
	CountByStatus() (map[ProcessingStatus]int, error)
	BackfillNeedsProcessing() (int, error)
	BackfillStatus() (int, error)
	ListMissingRawData() ([]RawCapture, error)
	SetRawDataIfMissing(id string, data []byte) (bool, error)
}

type PropertyRepository interface {
	Insert(property Property) error
	GetByID(id string) (*Property, error)
	GetByCode(code string) (*Property, error)
	CodeExists(code string) (bool, error)
	Search(filter PropertyFilter) ([]Property, error)
	Count() (int, error)
	ListCreatedAtRaw() ([]AuditedDate, error)
}

type LeadRepository interface {
	Insert(lead Lead) error
	CodeExists(code string) (bool, error)
	Count() (int, error)
}
