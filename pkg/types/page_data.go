package types

type NavbarData struct {
	IsAuthenticated bool
	UserID          string
	UserEmail       string
	UserName        string
	UserRole        UserRole
}

type NavbarDataSetter interface {
	SetNavbarData(data NavbarData)
}

type BasePageData struct {
	Title  string
	Navbar NavbarData
}

func (d *BasePageData) SetNavbarData(data NavbarData) {
	d.Navbar = data
}

type LoginPageData struct {
	BasePageData
	Message string
	Error   string
	Email   string
}

// Option is one entry of a select or radio group.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// SymptomField renders one symptom checkbox.
type SymptomField struct {
	Name    string
	Label   string
	Checked bool
}

// MediaField renders one attachment slot.
type MediaField struct {
	Kind       string
	Label      string
	Accept     string
	Hint       string
	Attachment *Attachment
	Error      string
}

type IntakePageData struct {
	BasePageData
	Form        FormState
	Regions     []Option
	Cities      []Option
	Occurrences []Option
	SeizureType []Option
	Symptoms    []SymptomField
	Image       MediaField
	Video       MediaField
	Notice      string
	Errors      []string
	Submitting  bool
}

type IntakeSubmittedPageData struct {
	BasePageData
	FormID      string
	Message     string
	HasResponse bool
}
