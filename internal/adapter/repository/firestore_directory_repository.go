package repository

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"oysloe/internal/domain/entity"
	"oysloe/internal/domain/repository"
)

// Collections written by the accounts and catalog services. Chat only reads them.
const (
	usersCollection    = "users"
	productsCollection = "products"
)

type userDoc struct {
	Email                      string `firestore:"email"`
	Name                       string `firestore:"name"`
	Phone                      string `firestore:"phone"`
	PreferredNotificationPhone string `firestore:"preferredNotificationPhone"`
	PreferredNotificationEmail string `firestore:"preferredNotificationEmail"`
	Avatar                     string `firestore:"avatar"`
	IsActive                   bool   `firestore:"isActive"`
	IsStaff                    bool   `firestore:"isStaff"`
}

func (d userDoc) toEntity(id string) *entity.User {
	return &entity.User{
		ID:                         id,
		Email:                      d.Email,
		Name:                       d.Name,
		Phone:                      d.Phone,
		PreferredNotificationPhone: d.PreferredNotificationPhone,
		PreferredNotificationEmail: d.PreferredNotificationEmail,
		Avatar:                     d.Avatar,
		IsActive:                   d.IsActive,
		IsStaff:                    d.IsStaff,
	}
}

type productDoc struct {
	PID     string `firestore:"pid"`
	Name    string `firestore:"name"`
	Image   string `firestore:"image"`
	OwnerID string `firestore:"ownerId"`
}

type firestoreUserRepository struct {
	client *firestore.Client
}

func NewFirestoreUserRepository(client *firestore.Client) repository.UserRepository {
	return &firestoreUserRepository{client: client}
}

func decodeUser(doc *firestore.DocumentSnapshot) (*entity.User, error) {
	var d userDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", doc.Ref.ID, err)
	}
	return d.toEntity(doc.Ref.ID), nil
}

func (r *firestoreUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	doc, err := r.client.Collection(usersCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return decodeUser(doc)
}

func (r *firestoreUserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	iter := r.client.Collection(usersCollection).Where("email", "==", email).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeUser(doc)
}

// GetByIDs skips ids with no document.
func (r *firestoreUserRepository) GetByIDs(ctx context.Context, ids []string) ([]*entity.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	refs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, r.client.Collection(usersCollection).Doc(id))
	}

	docs, err := r.client.GetAll(ctx, refs)
	if err != nil {
		return nil, err
	}
	users := make([]*entity.User, 0, len(docs))
	for _, doc := range docs {
		if !doc.Exists() {
			continue
		}
		u, err := decodeUser(doc)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

type firestoreProductRepository struct {
	client *firestore.Client
}

func NewFirestoreProductRepository(client *firestore.Client) repository.ProductRepository {
	return &firestoreProductRepository{client: client}
}

func decodeProduct(doc *firestore.DocumentSnapshot) (*entity.Product, error) {
	var d productDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, fmt.Errorf("decode product %s: %w", doc.Ref.ID, err)
	}
	return &entity.Product{ID: doc.Ref.ID, PID: d.PID, Name: d.Name, Image: d.Image, OwnerID: d.OwnerID}, nil
}

func (r *firestoreProductRepository) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	doc, err := r.client.Collection(productsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return decodeProduct(doc)
}

func (r *firestoreProductRepository) GetByPID(ctx context.Context, pid string) (*entity.Product, error) {
	iter := r.client.Collection(productsCollection).Where("pid", "==", pid).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeProduct(doc)
}
