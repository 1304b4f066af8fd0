package usecase

import "time"

// テスト時に固定できるよう時計は注入する
type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID() string
}

// 注文番号等の人間可読な採番。実装はcmd側で注入する。
type NumberGenerator interface {
	OrderNumber() string    // ORD-YYYYMMDD-HHMMSS-XXXX
	InvoiceNumber() string  // INV-YYYYMMDD-XXXX
	TrackingNumber() string // TRK-YYYYMMDD-XXXXXX
}
