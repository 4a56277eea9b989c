package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Action is the closed set of things the agent can ask the UI to do.
type Action string

const (
	ActionShowProducts       Action = "show-products"
	ActionChangeScene        Action = "change-scene"
	ActionWelcomeScene       Action = "welcome-scene"
	ActionInitiateCheckout   Action = "initiate-checkout"
	ActionConfirmOrder       Action = "confirm-order"
	ActionResetScene         Action = "reset-scene"
	ActionShowOrderStatus    Action = "show-order-status"
	ActionShowAccountSummary Action = "show-account-summary"
	ActionIdentifyCustomer   Action = "identify-customer"
)

// ParseAction accepts both SHOW_PRODUCTS and show-products spellings.
// show-product folds into show-products: the product count decides layout.
func ParseAction(raw string) (Action, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	v = strings.ReplaceAll(v, "_", "-")
	switch Action(v) {
	case "show-product", ActionShowProducts:
		return ActionShowProducts, nil
	case ActionChangeScene, ActionWelcomeScene, ActionInitiateCheckout, ActionConfirmOrder,
		ActionResetScene, ActionShowOrderStatus, ActionShowAccountSummary, ActionIdentifyCustomer:
		return Action(v), nil
	}
	return "", fmt.Errorf("unknown directive action %q", raw)
}

// Directive is a tagged union; each variant carries only its own fields.
type Directive interface {
	Action() Action
	directive()
}

// SceneHints is the scene-context part of a directive.
type SceneHints struct {
	Setting      Setting `json:"setting"`
	Mood         string  `json:"mood,omitempty"`
	Generate     bool    `json:"generateBackground,omitempty"`
	Prompt       string  `json:"backgroundPrompt,omitempty"`
	CMSAssetID   string  `json:"cmsAssetId,omitempty"`
	CMSTag       string  `json:"cmsTag,omitempty"`
	EditMode     bool    `json:"editMode,omitempty"`
	SceneAssetID string  `json:"sceneAssetId,omitempty"`
	ImageURL     string  `json:"imageUrl,omitempty"`
	Regenerate   bool    `json:"regenerate,omitempty"`
}

// OptsIn reports whether the hints explicitly ask for background work
// beyond a static gradient.
func (h SceneHints) OptsIn() bool {
	return h.Generate || h.Regenerate || h.Prompt != "" || h.ImageURL != "" ||
		h.SceneAssetID != "" || h.CMSAssetID != "" || h.CMSTag != ""
}

type ShowProducts struct {
	Products []Product  `json:"products,omitempty"`
	Scene    *SceneHints `json:"sceneContext,omitempty"`
}

type ChangeScene struct {
	Scene SceneHints `json:"sceneContext"`
}

type WelcomeScene struct {
	Message string      `json:"welcomeMessage"`
	Subtext string      `json:"welcomeSubtext,omitempty"`
	Scene   *SceneHints `json:"sceneContext,omitempty"`
}

type InitiateCheckout struct {
	Products         []Product `json:"products,omitempty"`
	UseStoredPayment bool      `json:"useStoredPayment"`
}

type ConfirmOrder struct {
	OrderID           string `json:"orderId"`
	EstimatedDelivery string `json:"estimatedDelivery,omitempty"`
}

type ResetScene struct{}

type OrderStatusLine struct {
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
}

type ShowOrderStatus struct {
	OrderID           string            `json:"orderId"`
	Status            string            `json:"status"`
	TrackingNumber    string            `json:"trackingNumber,omitempty"`
	EstimatedDelivery string            `json:"estimatedDelivery,omitempty"`
	LineItems         []OrderStatusLine `json:"lineItems,omitempty"`
}

type ShowAccountSummary struct {
	TotalOrders int     `json:"totalOrders"`
	OpenOrders  int     `json:"openOrders"`
	YTDSpend    float64 `json:"ytdSpend"`
	AccountTier string  `json:"accountTier"`
}

type IdentifyCustomer struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func (ShowProducts) Action() Action       { return ActionShowProducts }
func (ChangeScene) Action() Action        { return ActionChangeScene }
func (WelcomeScene) Action() Action       { return ActionWelcomeScene }
func (InitiateCheckout) Action() Action   { return ActionInitiateCheckout }
func (ConfirmOrder) Action() Action       { return ActionConfirmOrder }
func (ResetScene) Action() Action         { return ActionResetScene }
func (ShowOrderStatus) Action() Action    { return ActionShowOrderStatus }
func (ShowAccountSummary) Action() Action { return ActionShowAccountSummary }
func (IdentifyCustomer) Action() Action   { return ActionIdentifyCustomer }

func (ShowProducts) directive()       {}
func (ChangeScene) directive()        {}
func (WelcomeScene) directive()       {}
func (InitiateCheckout) directive()   {}
func (ConfirmOrder) directive()       {}
func (ResetScene) directive()         {}
func (ShowOrderStatus) directive()    {}
func (ShowAccountSummary) directive() {}
func (IdentifyCustomer) directive()   {}

// wire format used by agent backends and the transcript log
type directiveEnvelope struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// legacy payload shapes nest some variants one level down
type wirePayload struct {
	CheckoutData      *InitiateCheckout   `json:"checkoutData,omitempty"`
	OrderConfirmation *ConfirmOrder       `json:"orderConfirmation,omitempty"`
	OrderStatus       *ShowOrderStatus    `json:"orderStatus,omitempty"`
	AccountSummary    *ShowAccountSummary `json:"accountSummary,omitempty"`
	Customer          *IdentifyCustomer   `json:"customer,omitempty"`
}

// DecodeDirective parses {"action": ..., "payload": {...}}.
func DecodeDirective(b []byte) (Directive, error) {
	var env directiveEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode directive: %w", err)
	}
	return DecodeDirectiveParts(env.Action, env.Payload)
}

// DecodeDirectiveParts builds the variant for action from its raw payload.
func DecodeDirectiveParts(action string, payload json.RawMessage) (Directive, error) {
	a, err := ParseAction(action)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 || string(payload) == "null" {
		payload = json.RawMessage("{}")
	}

	switch a {
	case ActionShowProducts:
		return decodeAs[ShowProducts](payload)
	case ActionChangeScene:
		return decodeAs[ChangeScene](payload)
	case ActionWelcomeScene:
		return decodeAs[WelcomeScene](payload)
	case ActionResetScene:
		return ResetScene{}, nil
	}

	var nested wirePayload
	if err := json.Unmarshal(payload, &nested); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", a, err)
	}
	switch a {
	case ActionInitiateCheckout:
		if nested.CheckoutData != nil {
			return *nested.CheckoutData, nil
		}
		return decodeAs[InitiateCheckout](payload)
	case ActionConfirmOrder:
		if nested.OrderConfirmation != nil {
			return *nested.OrderConfirmation, nil
		}
		return decodeAs[ConfirmOrder](payload)
	case ActionShowOrderStatus:
		if nested.OrderStatus != nil {
			return *nested.OrderStatus, nil
		}
		return decodeAs[ShowOrderStatus](payload)
	case ActionShowAccountSummary:
		if nested.AccountSummary != nil {
			return *nested.AccountSummary, nil
		}
		return decodeAs[ShowAccountSummary](payload)
	case ActionIdentifyCustomer:
		if nested.Customer != nil {
			return *nested.Customer, nil
		}
		return decodeAs[IdentifyCustomer](payload)
	}
	return nil, fmt.Errorf("unhandled directive action %q", a)
}

func decodeAs[T Directive](payload json.RawMessage) (Directive, error) {
	var d T
	if err := json.Unmarshal(payload, &d); err != nil {
		return nil, fmt.Errorf("decode directive payload: %w", err)
	}
	return d, nil
}

// EncodeDirective is the inverse of DecodeDirective (flat payloads).
func EncodeDirective(d Directive) ([]byte, error) {
	if d == nil {
		return nil, nil
	}
	payload, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return json.Marshal(directiveEnvelope{Action: string(d.Action()), Payload: payload})
}
