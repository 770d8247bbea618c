// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package aspect_test

import (
	"errors"

	"github.com/sqreen/go-aspect/aspect"
)

type LoginType int

const (
	LoginTypeMobile LoginType = 7
	LoginTypeEmail  LoginType = 8
)

type IndexPath struct {
	Item, Section int
}

type ProductType int

const (
	ProductTypePhone ProductType = iota
	ProductTypeComputer
)

type Product struct {
	Name  string
	Type  ProductType
	Price float64
	Count int
}

type User struct {
	aspect.Object

	LoginType   LoginType
	Products    []Product
	ProductName *string
	Price       float64
	Count       int
	IndexPath   *IndexPath
	Completion  func(bool)
	Err         error

	logouts int
}

var errEmptyCart = errors.New("empty cart")

func (u *User) Logout() { u.logouts++ }

func (u *User) Login(t LoginType, needPassword bool) { u.LoginType = t }

func (u *User) Buy(productName string, price float64, count int) {
	u.ProductName = &productName
	u.Price = price
	u.Count = count
}

func (u *User) BuyAt(productName string, price float64, count int, indexPath IndexPath) {
	u.Buy(productName, price, count)
	u.IndexPath = &indexPath
}

func (u *User) BuyProducts(products []Product, completion func(bool)) {
	u.Products = products
	if len(products) > 0 {
		u.Buy(products[0].Name, products[0].Price, products[0].Count)
	}
	u.Completion = completion
}

func (u *User) BuyProduct(product Product, indexPath IndexPath, err error) {
	u.BuyAt(product.Name, product.Price, product.Count, indexPath)
	u.Err = err
}

func (u *User) Checkout(items ...string) (int, error) {
	if len(items) == 0 {
		return 0, errEmptyCart
	}
	return len(items), nil
}

func (u *User) Total() float64 { return u.Price * float64(u.Count) }

func (u *User) DoesNotRecognize(sel aspect.Selector) {
	panic("unrecognized selector " + sel)
}

// Customer is a subclass of User without own methods.
type Customer struct {
	User
}

// Cat and Dog have class methods not using their receiver.
type Cat struct{}

func (*Cat) Run() string { return "cat" }

type Dog struct{}

func (*Dog) Run() string { return "dog" }

// Point is a value type whose methods have value receivers.
type Point struct {
	X, Y float64
}

func (p Point) Add(o Point) Point { return Point{X: p.X + o.X, Y: p.Y + o.Y} }

// Admin embeds a User pointer which can be nil or shared by several admins.
type Admin struct {
	*User
}

func (a *Admin) Ban(name string) string { return "banned " + name }

// Shopper has the method of the package documentation examples.
type Shopper struct {
	aspect.Object
	basket []string
}

func (s *Shopper) Buy(product string, count int) error {
	if count <= 0 {
		return errEmptyCart
	}
	for i := 0; i < count; i++ {
		s.basket = append(s.basket, product)
	}
	return nil
}

// Unhookable has methods but doesn't embed aspect.Object.
type Unhookable struct{}

func (*Unhookable) Do() {}
