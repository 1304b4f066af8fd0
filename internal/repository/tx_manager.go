package repository

import "context"

// トランザクション内で使う約束
type TxRepos interface {
	Orders() OrderRepository
	Timeline() OrderTimelineRepository
	Payments() PaymentRepository
	PaymentTransactions() PaymentTransactionRepository
}

// UsecaseからTxの開始/commit/rollbackを隠す。
// 注文のミューテーション1回＝WithinTx1回（all-or-nothing）。
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}
