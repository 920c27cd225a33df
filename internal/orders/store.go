package orders

import "github.com/jackc/pgx/v5/pgxpool"

// Store gabungan: Service untuk create (transaksional), Repo untuk sisanya.
type Store struct {
	*Service
	*Repo
}

func NewStore(db *pgxpool.Pool) *Store {
	repo := &Repo{DB: db}
	return &Store{
		Service: &Service{DB: db, Orders: repo},
		Repo:    repo,
	}
}
