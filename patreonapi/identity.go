package patreonapi

// The identity endpoint returns a JSON:API compound document: the user as
// primary data and memberships, campaigns, creators, and tiers flattened
// into one "included" array cross-referenced by type+id. The structs below
// model just the slices of it this service reads.

type resourceRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type relationship struct {
	Data resourceRef `json:"data"`
}

type relationshipMany struct {
	Data []resourceRef `json:"data"`
}

type includedResource struct {
	Type       string `json:"type"`
	ID         string `json:"id"`
	Attributes struct {
		AmountCents int    `json:"amount_cents"`
		FullName    string `json:"full_name"`
		Vanity      string `json:"vanity"`
	} `json:"attributes"`
	Relationships struct {
		Campaign               relationship     `json:"campaign"`
		Creator                relationship     `json:"creator"`
		CurrentlyEntitledTiers relationshipMany `json:"currently_entitled_tiers"`
	} `json:"relationships"`
}

type identityDocument struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
	Included []includedResource `json:"included"`
}

// entitledCentsFor walks membership -> campaign -> creator and sums the
// amount_cents of the currently entitled tiers on memberships belonging to
// creatorID's campaigns.
func (d *identityDocument) entitledCentsFor(creatorID string) (patronID string, cents int) {
	patronID = d.Data.ID

	campaignCreator := make(map[string]string) // campaign id -> creator user id
	tierCents := make(map[string]int)          // tier id -> amount_cents
	for _, inc := range d.Included {
		switch inc.Type {
		case "campaign":
			campaignCreator[inc.ID] = inc.Relationships.Creator.Data.ID
		case "tier":
			tierCents[inc.ID] = inc.Attributes.AmountCents
		}
	}

	for _, inc := range d.Included {
		if inc.Type != "member" {
			continue
		}
		if campaignCreator[inc.Relationships.Campaign.Data.ID] != creatorID {
			continue
		}
		for _, tier := range inc.Relationships.CurrentlyEntitledTiers.Data {
			cents += tierCents[tier.ID]
		}
	}
	return patronID, cents
}
