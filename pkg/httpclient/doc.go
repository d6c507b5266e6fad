// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// gatewayからcatalog/order/authへの転送（Forward）と、orderサービスから
// catalogサービスへの商品確認（GetJSON）など、サービス間の通信パターンを統一する。
// 転送先に到達できない場合と、転送先が非2xxを返した場合を区別して扱う。
package httpclient
