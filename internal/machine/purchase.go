// internal/machine/purchase.go
package machine

import (
	"fmt"
	"math"

	"github.com/yusukekikuta0509/projectKAIKA/internal/models"
)

const (
	NoticeWalletRequired = "Please connect your wallet to purchase."
	NoticePurchaseFailed = "Transaction failed. Please try again."
)

// PurchaseRequest is everything CheckPurchase needs to decide.
type PurchaseRequest struct {
	Feeling      *models.Feeling
	PurchasingID string
	LoadingID    string
	Wallet       models.WalletState
	Balance      models.Cents
}

// CheckPurchase validates a purchase in the order the storefront reports problems.
func CheckPurchase(req PurchaseRequest) Outcome {
	f := req.Feeling
	switch {
	case f == nil:
		return Ignore(ReasonUnknownFeeling, "")
	case f.Owned:
		return Ignore(ReasonAlreadyOwned, "")
	case req.LoadingID != "" || req.PurchasingID != "":
		return Ignore(ReasonBusy, "")
	case !req.Wallet.Ready():
		return Ignore(ReasonWalletNotReady, NoticeWalletRequired)
	case req.Balance < f.Price:
		return Ignore(ReasonInsufficientFunds, fmt.Sprintf(
			"Insufficient USDC balance. Required: %s, Available: %s", f.Price, req.Balance))
	}
	return Accept()
}

// PurchasePhases are the status lines shown while the purchase is pending.
func PurchasePhases(name string) [3]string {
	return [3]string{
		fmt.Sprintf("Processing purchase for %s...", name),
		"Generating transaction...",
		"Please confirm transaction in your wallet...",
	}
}

// PurchaseReward is the KAIKA bonus for a confirmed purchase.
func PurchaseReward(price models.Cents, fraction float64) int64 {
	return int64(math.Floor(price.Float() * fraction))
}

// SettlePurchase applies a confirmed purchase to the balances.
func SettlePurchase(b models.Balances, price models.Cents, fraction float64) models.Balances {
	b.USDC -= price
	b.KAIKA += PurchaseReward(price, fraction)
	return b
}

func PurchaseSucceeded(name, txHash string) string {
	return fmt.Sprintf("Purchase successful! '%s' added to your portfolio. Tx: %s", name, models.TruncateHash(txHash))
}
