package config

// Keywords groups the vocabulary lists used for scoring pages and links.
// All entries are lower case.
type Keywords struct {
	// High, Medium and Low are the navigation relevance tiers.
	High   []string
	Medium []string
	Low    []string

	// URLBonus terms earn a fixed bonus when found in a link target.
	URLBonus []string

	// Vocabulary is the billing word list used for page keyword density.
	Vocabulary []string

	// HistoryIndicators mark a page as a known billing page on their own.
	HistoryIndicators []string

	// PaymentWords and BillWords classify a record's kind from its text.
	PaymentWords []string
	BillWords    []string

	// SidebarMarkers, HeaderMarkers and FooterMarkers classify a link's
	// container from ancestor class, id and role attributes.
	SidebarMarkers []string
	HeaderMarkers  []string
	FooterMarkers  []string

	// SidebarPriority phrases earn extra weight for sidebar links.
	SidebarPriority []string

	// CommonPaths are guessed billing routes relative to the site origin.
	CommonPaths []string

	// RegistrationURL and RegistrationText detect account-setup walls.
	RegistrationURL  []string
	RegistrationText []string
}

// DefaultKeywords returns the stock vocabulary for US utility portals.
func DefaultKeywords() Keywords {
	return Keywords{
		High: []string{
			"billing history", "transaction history", "payment history", "billing",
			"transactions", "bill history", "account history", "statement history",
			"utility billing", "my bills", "view bills", "past bills", "previous bills",
			"bill pay",
		},
		Medium: []string{
			"account", "usage", "dashboard", "statements", "bills", "utilities",
			"my account", "account details", "service history", "usage history",
			"water bills", "electric bills", "gas bills", "utility services",
		},
		Low:        []string{"overview", "home", "summary", "welcome"},
		URLBonus:   []string{"billing", "transaction", "history"},
		Vocabulary: []string{"bill", "payment", "amount", "due", "balance", "paid", "current"},
		HistoryIndicators: []string{
			"transaction history", "billing history", "payment history",
			"account history", "statement history",
		},
		PaymentWords: []string{"payment", "paid", "credit"},
		BillWords:    []string{"bill", "charge", "invoice", "usage"},
		SidebarMarkers: []string{
			"sidebar", "side-nav", "sidenav", "left-nav", "right-nav", "utility-nav",
			"account-nav", "navigation", "nav", "menu",
		},
		HeaderMarkers: []string{"header", "top-nav", "topnav", "navbar"},
		FooterMarkers: []string{"footer", "bottom"},
		SidebarPriority: []string{
			"transactions", "transaction history", "account detail", "billing history",
			"payment history", "account history",
		},
		CommonPaths: []string{
			"/#/billing-history", "/#/transaction-history", "/#/payment-history",
			"/#/account-history", "/#/billing", "/#/transactions", "/#/statements",
			"/#/bills", "/#/usage-history",
			"/ui/#/billing-history", "/ui/#/transaction-history", "/ui/#/billing",
			"/ui/#/transactions",
			"/billing-history", "/billing/history", "/transactions", "/payment-history",
		},
		RegistrationURL: []string{"registration", "register", "setup"},
		RegistrationText: []string{
			"complete your registration", "link your utility account",
			"account setup required", "finish account setup",
		},
	}
}
