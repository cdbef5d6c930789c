package models

import "fmt"

const (
	MsgIDKeyPattern    = "ess:msg:%s"     // ess:msg:<msgId>
	ProductKeyPattern  = "ess:product:%s" // ess:product:<productCode>
	ReconcileLockKey   = "ess:lock:reconcile"
	MsgIDPendingMarker = "pending"
)

func MsgIDKeyBuilder(msgID string) string {
	return fmt.Sprintf(MsgIDKeyPattern, msgID)
}

func ProductKeyBuilder(productCode string) string {
	return fmt.Sprintf(ProductKeyPattern, productCode)
}
