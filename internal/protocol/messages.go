package protocol

// Request bodies. Every one of these has a reflected schema (see schema.go);
// fields without omitempty are required.

type CoordRequest struct {
	X int `json:"x" jsonschema:"minimum=0,maximum=30"`
	Y int `json:"y" jsonschema:"minimum=0,maximum=30"`
}

type BuildRequest struct {
	X            int    `json:"x" jsonschema:"minimum=0,maximum=30"`
	Y            int    `json:"y" jsonschema:"minimum=0,maximum=30"`
	MaterialType string `json:"material_type" jsonschema:"minLength=1"`
}

type TradeRequest struct {
	Material string `json:"material" jsonschema:"minLength=1"`
	Quantity int    `json:"quantity,omitempty" jsonschema:"minimum=1"`
}

type EnterRequest struct {
	HouseID string `json:"house_id" jsonschema:"minLength=1"`
}

type MoveRequest struct {
	Direction string `json:"direction" jsonschema:"enum=up,enum=down,enum=left,enum=right"`
}

type ConfigSetRequest struct {
	Value string `json:"value"`
}

type SelfRegisterRequest struct {
	RegistrationKey string `json:"registration_key" jsonschema:"minLength=1"`
	MAC             string `json:"mac" jsonschema:"minLength=1"`
}

// PurgeRequest trims the players registered under one key. Options default
// to keeping the single richest player.
type PurgeRequest struct {
	RegistrationKey string       `json:"registration_key" jsonschema:"minLength=1"`
	Options         PurgeOptions `json:"options,omitempty"`
}

type PurgeOptions struct {
	RemainingPlayers *int   `json:"remaining_players,omitempty" jsonschema:"minimum=0"`
	DeleteBy         string `json:"delete_by,omitempty" jsonschema:"enum=money,enum=first_created,enum=all"`
}

// Responses.

type RegisterResponse struct {
	Success  bool   `json:"success"`
	PlayerID string `json:"player_id"`
	Token    string `json:"token"`
}

type PlayerResponse struct {
	Success            bool   `json:"success"`
	PlayerID           string `json:"player_id"`
	HouseID            string `json:"house_id,omitempty"`
	CreatedOn          string `json:"created_on"`
	LastActivity       string `json:"last_activity"`
	LastRobberyAttempt string `json:"last_robbery_attempt,omitempty"`
	InHouse            string `json:"in_house,omitempty"`
}

type HouseResponse struct {
	Success bool `json:"success"`
	House   any  `json:"house"`
}

// VaultResponse condenses the vault: walls is the total placeable stock.
type VaultResponse struct {
	Success bool           `json:"success"`
	Dollars int            `json:"dollars"`
	Walls   int            `json:"walls"`
	Stock   map[string]int `json:"stock,omitempty"`
}

type TradeResponse struct {
	Success  bool   `json:"success"`
	Material string `json:"material"`
	Quantity int    `json:"quantity"`
	Price    int    `json:"price"`
	Total    int    `json:"total"`
	Dollars  int    `json:"dollars"`
}

type Robbery struct {
	VictimHouseID string `json:"victim_house_id"`
	Dollars       int    `json:"dollars"`
}

// ViewResponse answers every in-house operation: where the player stands
// and what they see.
type ViewResponse struct {
	Success        bool     `json:"success"`
	HouseID        string   `json:"house_id"`
	PlayerLocation [2]int   `json:"player_location"`
	LuckyNumbers   string   `json:"lucky_numbers,omitempty"`
	Format         string   `json:"format"`
	Construction   any      `json:"construction"`
	Robbery        *Robbery `json:"robbery,omitempty"`
}

type FindHouseResponse struct {
	Success bool   `json:"success"`
	HouseID string `json:"house_id"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Count   int    `json:"count,omitempty"`
}

// BadgeResponse carries one registration key, or the whole list.
type BadgeResponse struct {
	Success bool   `json:"success"`
	Badge   any    `json:"badge,omitempty"`
	Badges  any    `json:"badges,omitempty"`
	Message string `json:"message,omitempty"`
}

type ConfigResponse struct {
	Success bool              `json:"success"`
	Key     string            `json:"key,omitempty"`
	Value   string            `json:"value,omitempty"`
	Items   map[string]string `json:"items,omitempty"`
}

// CompareResponse lists the cells where two houses differ.
type CompareResponse struct {
	Success     bool       `json:"success"`
	Differences []CellDiff `json:"differences"`
	Dollars     [2]int     `json:"dollars"`
}

type CellDiff struct {
	Location [2]int `json:"location"`
	A        string `json:"a"`
	B        string `json:"b"`
}

// Websocket envelopes.

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerID        string `json:"player_id"`
	Token           string `json:"token"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	PlayerID        string    `json:"player_id"`
	HouseID         string    `json:"house_id,omitempty"`
	Palette         DigestRef `json:"palette"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// REQ (client -> server). Op selects which of the optional fields apply.
type RequestMsg struct {
	Type         string `json:"type"`
	ReqID        string `json:"req_id"`
	Op           string `json:"op"`
	HouseID      string `json:"house_id,omitempty"`
	Direction    string `json:"direction,omitempty"`
	X            int    `json:"x,omitempty"`
	Y            int    `json:"y,omitempty"`
	MaterialType string `json:"material_type,omitempty"`
	Compressed   bool   `json:"compressed,omitempty"`
}

// RESULT (server -> client), exactly one per REQ.
type ResultMsg struct {
	Type   string         `json:"type"`
	ReqID  string         `json:"req_id"`
	OK     bool           `json:"ok"`
	Error  *ErrorResponse `json:"error,omitempty"`
	Result any            `json:"result,omitempty"`
}
