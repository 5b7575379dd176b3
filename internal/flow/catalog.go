package flow

import "fmt"

// Kind identifies which conversation owns a session
type Kind string

const (
	KindContent     Kind = "add_content"
	KindAdvertising Kind = "advertising"
	KindPartnership Kind = "partnership"
	KindClaim       Kind = "claim_access"
	KindFeedback    Kind = "feedback"
	KindReport      Kind = "report"
	KindHashtag     Kind = "hashtag"
	KindUpdate      Kind = "update_data"
	KindSearch      Kind = "search"
	KindShare       Kind = "share"
)

// Field is a single question of a flow
type Field string

const (
	FieldName         Field = "name"
	FieldDescription  Field = "description"
	FieldPrice        Field = "price"
	FieldContacts     Field = "contacts"
	FieldAddress      Field = "address"
	FieldSchedule     Field = "schedule"
	FieldSocial       Field = "social"
	FieldPhoto        Field = "photo"
	FieldContent      Field = "content"
	FieldVideo        Field = "video"
	FieldSource       Field = "source"
	FieldAuthor       Field = "author"
	FieldTopic        Field = "topic"
	FieldOrganization Field = "organization"
	FieldProof        Field = "proof"
	FieldMessage      Field = "message"
	FieldDetails      Field = "details"
	FieldHashtag      Field = "hashtag"
	FieldChanges      Field = "changes"
	FieldNewData      Field = "new_data"
	FieldQuery        Field = "query"

	// StepConfirm is the terminal step once every field is collected
	StepConfirm Field = "confirm"
)

// Rule is how an answer to a field is validated
type Rule int

const (
	RuleRequired Rule = iota
	RuleMinLength
	RuleOptional
	RulePhoto
	RulePhotoOrText
	RuleHashtag
)

// Descriptor drives validation and prompting of a field
type Descriptor struct {
	Label     string
	Prompt    string
	Rule      Rule
	MinLength int
	Retry     string
	Long      bool
}

// Handoff is what happens once a flow has every answer
type Handoff int

const (
	HandoffModeration Handoff = iota
	HandoffLocal
)

// Review is the set of controls the moderator gets for a flow
type Review int

const (
	ReviewPublish Review = iota
	ReviewVerdict
	ReviewAcknowledge
)

// Type is a submission subtype with its ordered field sequence
type Type struct {
	Tag      string
	Icon     string
	Name     string
	Category string
	Fields   []Field
	Prompts  map[Field]string
}

// Flow describes one conversation the bot can run
type Flow struct {
	Kind    Kind
	Icon    string
	Title   string
	Confirm bool
	Handoff Handoff
	Review  Review
	Types   []Type

	// Thanks is sent to the submitter after handoff
	Thanks string
	// Handled is sent to the submitter when the moderator acknowledges
	Handled string
	// ActionLabel is the caption of the acknowledge button
	ActionLabel string
}

// Catalog holds every flow and field descriptor
type Catalog struct {
	flows  map[Kind]*Flow
	fields map[Field]Descriptor
}

// NewCatalog builds a catalog and checks that every declared field is described
func NewCatalog(flows []Flow, fields map[Field]Descriptor) (*Catalog, error) {
	c := &Catalog{
		flows:  make(map[Kind]*Flow, len(flows)),
		fields: fields,
	}
	for i := range flows {
		f := flows[i]
		if len(f.Types) == 0 {
			return nil, fmt.Errorf("flow %s has no types", f.Kind)
		}
		for _, t := range f.Types {
			if len(t.Fields) == 0 {
				return nil, fmt.Errorf("flow %s type %q has no fields", f.Kind, t.Tag)
			}
			for _, field := range t.Fields {
				if _, ok := fields[field]; !ok {
					return nil, fmt.Errorf("flow %s type %q: field %s has no descriptor", f.Kind, t.Tag, field)
				}
			}
		}
		c.flows[f.Kind] = &f
	}
	return c, nil
}

// Flow returns the flow registered for kind
func (c *Catalog) Flow(kind Kind) (*Flow, bool) {
	f, ok := c.flows[kind]
	return f, ok
}

// Type returns a subtype of kind. An empty tag selects the flow's only type.
func (c *Catalog) Type(kind Kind, tag string) (*Type, bool) {
	f, ok := c.flows[kind]
	if !ok {
		return nil, false
	}
	if tag == "" && len(f.Types) == 1 {
		return &f.Types[0], true
	}
	for i := range f.Types {
		if f.Types[i].Tag == tag {
			return &f.Types[i], true
		}
	}
	return nil, false
}

// Describe returns the descriptor of field
func (c *Catalog) Describe(field Field) Descriptor {
	return c.fields[field]
}

// Prompt returns the question for field, honouring per-type overrides
func (t *Type) Prompt(field Field, d Descriptor) string {
	if p, ok := t.Prompts[field]; ok {
		return p
	}
	return d.Prompt
}

// DefaultCatalog returns the flows of the community directory bot
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultFlows(), defaultFields())
	if err != nil {
		panic(err)
	}
	return c
}

func defaultFields() map[Field]Descriptor {
	return map[Field]Descriptor{
		FieldName: {
			Label: "Name", Prompt: "Enter the <b>name</b>:",
			Rule: RuleMinLength, MinLength: 2,
			Retry: "⚠️ The name is too short. Try again:",
		},
		FieldDescription: {
			Label: "Description", Prompt: "Enter a <b>description</b>:",
			Rule: RuleMinLength, MinLength: 10, Long: true,
			Retry: "⚠️ The description is too short (at least 10 characters):",
		},
		FieldPrice: {
			Label: "Price", Prompt: "Enter the <b>price</b> (e.g. \"1000 rub\", \"negotiable\"):",
			Rule: RuleRequired, Retry: "⚠️ Please enter the price:",
		},
		FieldContacts: {
			Label: "Contacts", Prompt: "Enter <b>contact details</b> (phone, email):",
			Rule: RuleRequired, Retry: "⚠️ Please enter contact details:",
		},
		FieldAddress: {
			Label: "Address", Prompt: "Enter the <b>address</b> (or \"-\"):",
			Rule: RuleOptional,
		},
		FieldSchedule: {
			Label: "Schedule", Prompt: "Enter the <b>working hours</b> (or \"-\"):",
			Rule: RuleOptional,
		},
		FieldSocial: {
			Label: "Social links", Prompt: "Enter <b>social media links</b> (or \"-\"):",
			Rule: RuleOptional,
		},
		FieldPhoto: {
			Label: "Photo", Prompt: "Send a <b>photo</b> (or \"-\" to skip):",
			Rule: RulePhoto, Retry: "⚠️ Send a photo or \"-\" to skip:",
		},
		FieldContent: {
			Label: "Text", Prompt: "Enter the <b>news text</b>:",
			Rule: RuleMinLength, MinLength: 10, Long: true,
			Retry: "⚠️ The news text is too short (at least 10 characters):",
		},
		FieldVideo: {
			Label: "Video", Prompt: "Enter a <b>video link</b> (or \"-\"):",
			Rule: RuleOptional,
		},
		FieldSource: {
			Label: "Source", Prompt: "Enter the <b>news source</b> (or \"-\"):",
			Rule: RuleOptional,
		},
		FieldAuthor: {
			Label: "Author", Prompt: "Enter the <b>author</b>:",
			Rule: RuleRequired, Retry: "⚠️ Please enter the author:",
		},
		FieldTopic: {
			Label: "Topic", Prompt: "Describe your <b>proposal</b> (area, terms, expectations):",
			Rule: RuleMinLength, MinLength: 10, Long: true,
			Retry: "⚠️ The description is too short. Tell us more:",
		},
		FieldOrganization: {
			Label: "Organization", Prompt: "Enter the <b>organization name</b>:",
			Rule: RuleRequired, Retry: "⚠️ Please enter the organization name:",
		},
		FieldProof: {
			Label: "Proof", Prompt: "Send a <b>photo of a document</b> proving your relation to the organization, or describe it in text:",
			Rule: RulePhotoOrText, Long: true,
			Retry: "⚠️ Send a photo or describe your relation to the organization:",
		},
		FieldMessage: {
			Label: "Message", Prompt: "Write your <b>message</b>:",
			Rule: RuleMinLength, MinLength: 5, Long: true,
			Retry: "⚠️ The message is too short. Tell us more:",
		},
		FieldDetails: {
			Label: "Details", Prompt: "Describe the <b>details</b> of the problem:",
			Rule: RuleMinLength, MinLength: 5, Long: true,
			Retry: "⚠️ Tell us more:",
		},
		FieldHashtag: {
			Label: "Hashtag", Prompt: "Which <b>hashtag</b> should be added? Examples: #plumbing #delivery",
			Rule: RuleHashtag, Retry: "⚠️ Include the # sign (e.g. #plumbing):",
		},
		FieldChanges: {
			Label: "Changes", Prompt: "Describe <b>what has changed</b> (phone, address, hours, name, other):",
			Rule: RuleMinLength, MinLength: 10, Long: true,
			Retry: "⚠️ Describe in more detail what has changed:",
		},
		FieldNewData: {
			Label: "Current data", Prompt: "Enter the <b>current data</b> (phone, address, hours, ...):",
			Rule: RuleRequired, Long: true, Retry: "⚠️ Please enter the current data:",
		},
		FieldQuery: {
			Label: "Query", Prompt: "Enter a search query, e.g. electrician, food delivery, car service:",
			Rule: RuleMinLength, MinLength: 2,
			Retry: "⚠️ The query is too short. Enter at least 2 characters:",
		},
	}
}

func defaultFlows() []Flow {
	business := []Field{FieldName, FieldDescription, FieldPrice, FieldContacts, FieldAddress, FieldSchedule, FieldSocial, FieldPhoto}

	return []Flow{
		{
			Kind: KindContent, Icon: "📝", Title: "New submission",
			Confirm: true, Handoff: HandoffModeration, Review: ReviewPublish,
			Thanks: "🙏 <b>Thank you!</b>\n\nYour data has been sent. The moderator will review it and contact you if there are questions.",
			Types: []Type{
				{
					Tag: "organization", Icon: "🏢", Name: "Organization", Category: "Organizations",
					Fields: []Field{FieldName, FieldDescription, FieldContacts, FieldAddress, FieldSchedule, FieldSocial, FieldPhoto},
				},
				{
					Tag: "news", Icon: "📰", Name: "News", Category: "News",
					Fields: []Field{FieldName, FieldPhoto, FieldContent, FieldVideo, FieldSource, FieldAddress, FieldAuthor},
					Prompts: map[Field]string{
						FieldName: "Enter the <b>news headline</b>:",
					},
				},
				{Tag: "service", Icon: "🛠", Name: "Service", Category: "Services", Fields: business},
				{Tag: "ad", Icon: "📋", Name: "Ad", Category: "Ads", Fields: business},
				{
					Tag: "house", Icon: "🏠", Name: "House / property", Category: "Houses",
					Fields: []Field{FieldName, FieldDescription, FieldPrice, FieldAddress, FieldContacts, FieldPhoto},
					Prompts: map[Field]string{
						FieldName:    "Enter the <b>listing title</b>:",
						FieldPrice:   "Enter the <b>price</b> (e.g. \"5 000 000 rub\", \"negotiable\"):",
						FieldAddress: "Enter the <b>address</b> (district, street) or \"-\":",
					},
				},
			},
		},
		{
			Kind: KindAdvertising, Icon: "📢", Title: "Advertising request",
			Handoff: HandoffModeration, Review: ReviewAcknowledge, ActionLabel: "✅ Take on",
			Thanks:  "✅ <b>Advertising request sent!</b>\n\nThe administrator will contact you shortly.",
			Handled: "📢 Your advertising request has been taken on!",
			Types: advertisingTypes([]Field{FieldDescription, FieldContacts}, map[Field]string{
				FieldDescription: "📝 Describe your advertising (what to place, dates, wishes):",
				FieldContacts:    "📞 Enter your contact details (phone, email, Telegram):",
			}),
		},
		{
			Kind: KindPartnership, Icon: "🤝", Title: "Partnership proposal",
			Handoff: HandoffModeration, Review: ReviewAcknowledge, ActionLabel: "✅ Reply",
			Thanks:  "🙏 <b>Thank you!</b>\n\nYour proposal has been sent. The administrator will contact you.",
			Handled: "🤝 Your partnership proposal is being reviewed!",
			Types: []Type{{Fields: []Field{FieldTopic, FieldContacts}, Prompts: map[Field]string{
				FieldContacts: "📞 Enter your contact details:",
			}}},
		},
		{
			Kind: KindClaim, Icon: "🔐", Title: "Organization access request",
			Handoff: HandoffModeration, Review: ReviewVerdict,
			Thanks:  "🙏 <b>Thank you!</b>\n\nYour request has been sent. The administrator will verify it and contact you.",
			Handled: "🔐 <b>Access confirmed!</b>\n\nYou can now manage your organization. The administrator will contact you to hand over access.",
			Types: []Type{{Fields: []Field{FieldOrganization, FieldProof, FieldContacts}, Prompts: map[Field]string{
				FieldOrganization: "Enter the <b>organization name</b> as it appears on the site:",
			}}},
		},
		{
			Kind: KindFeedback, Icon: "💬", Title: "Feedback",
			Handoff: HandoffModeration, Review: ReviewAcknowledge, ActionLabel: "✅ Read",
			Thanks:  "🙏 <b>Thank you for the feedback!</b>\n\nYour message has been sent to the administrator.",
			Handled: "💬 Your message has been read by the administrator. Thank you!",
			Types: []Type{
				{Tag: "question", Icon: "❓", Name: "Question", Fields: []Field{FieldMessage}},
				{Tag: "comment", Icon: "💡", Name: "Comment", Fields: []Field{FieldMessage}},
				{Tag: "suggestion", Icon: "✨", Name: "Suggestion", Fields: []Field{FieldMessage}},
			},
		},
		{
			Kind: KindReport, Icon: "🚨", Title: "Problem report",
			Handoff: HandoffModeration, Review: ReviewAcknowledge, ActionLabel: "✅ Noted",
			Thanks:  "🙏 <b>Thank you!</b>\n\nYour report has been sent. We will check it and take action.",
			Handled: "🚨 Your report has been reviewed. Thank you for helping!",
			Types: reportTypes([]Field{FieldOrganization, FieldDetails}, map[Field]string{
				FieldOrganization: "Enter the <b>organization name</b> or a <b>link</b> to the page with the problem:",
			}),
		},
		{
			Kind: KindHashtag, Icon: "#️⃣", Title: "Hashtag request",
			Handoff: HandoffModeration, Review: ReviewAcknowledge, ActionLabel: "✅ Added",
			Thanks:  "🙏 <b>Thank you!</b>\n\nThe hashtag has been sent to the administrator.",
			Handled: "#️⃣ The hashtag you suggested has been added. Thank you!",
			Types: []Type{{Fields: []Field{FieldOrganization, FieldHashtag}, Prompts: map[Field]string{
				FieldOrganization: "Enter the name of the <b>organization or service</b> that needs a hashtag:",
			}}},
		},
		{
			Kind: KindUpdate, Icon: "🔄", Title: "Data update",
			Handoff: HandoffModeration, Review: ReviewAcknowledge, ActionLabel: "✅ Updated",
			Thanks:  "🙏 <b>Thank you!</b>\n\nThe current data has been sent. The information on the site will be updated.",
			Handled: "🔄 The information on the site has been updated. Thank you!",
			Types: []Type{{Fields: []Field{FieldOrganization, FieldChanges, FieldNewData}, Prompts: map[Field]string{
				FieldOrganization: "Enter the <b>name of the organization</b> whose data should be updated:",
			}}},
		},
		{
			Kind: KindSearch, Icon: "🔍", Title: "Search",
			Handoff: HandoffLocal,
			Types:   []Type{{Fields: []Field{FieldQuery}}},
		},
		{
			Kind: KindShare, Icon: "📤", Title: "Share",
			Handoff: HandoffLocal,
			Types: []Type{{Fields: []Field{FieldOrganization}, Prompts: map[Field]string{
				FieldOrganization: "Enter the <b>name of the organization</b> you want to share:",
			}}},
		},
	}
}

func advertisingTypes(fields []Field, prompts map[Field]string) []Type {
	return []Type{
		{Tag: "banner", Icon: "🖼", Name: "Homepage banner", Fields: fields, Prompts: prompts},
		{Tag: "article", Icon: "📝", Name: "Sponsored article", Fields: fields, Prompts: prompts},
		{Tag: "listing", Icon: "📌", Name: "Featured listing", Fields: fields, Prompts: prompts},
		{Tag: "other", Icon: "📎", Name: "Other", Fields: fields, Prompts: prompts},
	}
}

func reportTypes(fields []Field, prompts map[Field]string) []Type {
	return []Type{
		{Tag: "wrong_data", Icon: "❌", Name: "Wrong data", Fields: fields, Prompts: prompts},
		{Tag: "not_exist", Icon: "🚫", Name: "Organization does not exist", Fields: fields, Prompts: prompts},
		{Tag: "spam", Icon: "⚠️", Name: "Spam / fraud", Fields: fields, Prompts: prompts},
		{Tag: "other", Icon: "📝", Name: "Other", Fields: fields, Prompts: prompts},
	}
}
