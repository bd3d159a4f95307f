package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarketMasterPlus/mm-shopping-cart/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoRepository keeps each cart as one document with its items embedded,
// so deleting the document removes the items with it.
type mongoRepository struct {
	collection *mongo.Collection
	counters   *mongo.Collection
}

type counter struct {
	Seq int64 `bson:"seq"`
}

func NewMongoRepository(db *mongo.Database) CartRepository {
	return &mongoRepository{
		collection: db.Collection("carts"),
		counters:   db.Collection("counters"),
	}
}

// nextID hands out increasing integer ids so both stores expose the same id shape.
func (m *mongoRepository) nextID(ctx context.Context, name string) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var c counter
	err := m.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&c)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate %s: %w", name, err)
	}
	return c.Seq, nil
}

func (m *mongoRepository) ListCarts(ctx context.Context, customerCPF string) ([]*domain.Cart, error) {
	filter := bson.M{}
	if customerCPF != "" {
		filter["customercpf"] = customerCPF
	}

	cursor, err := m.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list carts: %w", err)
	}

	var carts []*domain.Cart
	if err := cursor.All(ctx, &carts); err != nil {
		return nil, fmt.Errorf("failed to decode carts: %w", err)
	}
	for _, cart := range carts {
		normalize(cart)
	}
	return carts, nil
}

func (m *mongoRepository) CreateCart(ctx context.Context, customerCPF string) (*domain.Cart, error) {
	id, err := m.nextID(ctx, "cart_id")
	if err != nil {
		return nil, err
	}

	cart := &domain.Cart{
		ID:          id,
		CustomerCPF: customerCPF,
		DateCreated: time.Now().UTC().Truncate(time.Millisecond),
		Items:       []domain.CartItem{},
	}
	if _, err := m.collection.InsertOne(ctx, cart); err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	return cart, nil
}

func (m *mongoRepository) GetCart(ctx context.Context, id int64) (*domain.Cart, error) {
	var cart domain.Cart
	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	normalize(&cart)
	return &cart, nil
}

func (m *mongoRepository) UpdateCart(ctx context.Context, id int64, upd domain.CartUpdate) (*domain.Cart, error) {
	if upd.CustomerCPF == nil {
		return m.GetCart(ctx, id)
	}

	var cart domain.Cart
	err := m.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"customercpf": *upd.CustomerCPF}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to update cart: %w", err)
	}
	normalize(&cart)
	return &cart, nil
}

func (m *mongoRepository) DeleteCart(ctx context.Context, id int64) error {
	result, err := m.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}

	return nil
}

func (m *mongoRepository) MarkPurchased(ctx context.Context, id int64) (*domain.Cart, error) {
	var cart domain.Cart
	err := m.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": false},
		bson.M{"$set": bson.M{"status": true}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&cart)
	if err == nil {
		normalize(&cart)
		return &cart, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to mark cart purchased: %w", err)
	}

	if _, getErr := m.GetCart(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrCartPurchased
}

func (m *mongoRepository) GetItem(ctx context.Context, cartID, productItemID int64) (*domain.CartItem, error) {
	cart, err := m.GetCart(ctx, cartID)
	if err != nil {
		if errors.Is(err, ErrCartNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}

	item := cart.FindItem(productItemID)
	if item == nil {
		return nil, ErrItemNotFound
	}
	return item, nil
}

func (m *mongoRepository) CreateItem(ctx context.Context, cartID, productItemID int64, quantity int) (*domain.CartItem, error) {
	id, err := m.nextID(ctx, "cart_item_id")
	if err != nil {
		return nil, err
	}

	item := domain.CartItem{ID: id, CartID: cartID, ProductItemID: productItemID, Quantity: quantity}

	// The $ne guard makes the push conditional on the pair not existing yet.
	filter := bson.M{"_id": cartID, "status": false, "items.productitemid": bson.M{"$ne": productItemID}}
	update := bson.M{"$push": bson.M{"items": item}}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, fmt.Errorf("failed to add new item: %w", err)
	}
	if result.MatchedCount == 0 {
		return nil, m.missedItemWrite(ctx, cartID, ErrItemExists)
	}
	return &item, nil
}

func (m *mongoRepository) UpdateItemQuantity(ctx context.Context, cartID, productItemID int64, quantity int) (*domain.CartItem, error) {
	filter := bson.M{
		"_id":                 cartID,
		"status":              false,
		"items.productitemid": productItemID,
	}

	update := bson.M{
		"$set": bson.M{
			"items.$[elem].quantity": quantity,
		},
	}

	arrayFilters := options.FindOneAndUpdate().
		SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{
				bson.M{"elem.productitemid": productItemID},
			},
		}).
		SetReturnDocument(options.After)

	var cart domain.Cart
	err := m.collection.FindOneAndUpdate(ctx, filter, update, arrayFilters).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, m.missedItemWrite(ctx, cartID, ErrItemNotFound)
		}
		return nil, fmt.Errorf("failed to update item quantity: %w", err)
	}

	item := cart.FindItem(productItemID)
	if item == nil {
		return nil, ErrItemNotFound
	}
	return item, nil
}

func (m *mongoRepository) DeleteItem(ctx context.Context, cartID, productItemID int64) error {
	filter := bson.M{"_id": cartID, "status": false, "items.productitemid": productItemID}
	update := bson.M{
		"$pull": bson.M{
			"items": bson.M{"productitemid": productItemID},
		},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}

	if result.MatchedCount == 0 {
		return m.missedItemWrite(ctx, cartID, ErrItemNotFound)
	}

	return nil
}

// missedItemWrite explains why a filtered item write matched no cart.
func (m *mongoRepository) missedItemWrite(ctx context.Context, cartID int64, otherwise error) error {
	cart, err := m.GetCart(ctx, cartID)
	if err != nil {
		return err
	}
	if cart.Purchased {
		return ErrCartPurchased
	}
	return otherwise
}

func (m *mongoRepository) Ping(ctx context.Context) error {
	return m.collection.Database().Client().Ping(ctx, nil)
}

func (m *mongoRepository) Close(ctx context.Context) error {
	return m.collection.Database().Client().Disconnect(ctx)
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "customercpf", Value: 1}},
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

func normalize(cart *domain.Cart) {
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
}
