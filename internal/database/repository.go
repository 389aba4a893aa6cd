package database

type ChatRepository interface {
	Ping() error
	CreateMessage(params CreateMessageParams) (Message, error)
	RecentMessages(limit int) ([]Message, error)
	DeleteMessage(id int) error
	CreateBan(params CreateBanParams) (Ban, error)
	DeleteBan(id int) error
	ListBans() ([]Ban, error)
	ActiveBanSessionIds() ([]string, error)
	CreateAccount(params CreateAccountParams) (User, error)
	CountAccounts() (int, error)
	GetAccountById(accountId int) (User, error)
	GetAccountByEmail(email string) (User, error)
}
