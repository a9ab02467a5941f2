package enums

// TicketCodeStatus is the redemption state of one admission code.
type TicketCodeStatus string

const (
	TicketCodeValid    TicketCodeStatus = "valid"
	TicketCodeRedeemed TicketCodeStatus = "redeemed"
)

// TicketStatus is the state of a ticket purchase as a whole.
type TicketStatus string

const (
	TicketStatusReserved TicketStatus = "reserved"
	TicketStatusRedeemed TicketStatus = "redeemed"
)
